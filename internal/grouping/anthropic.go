package grouping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lmdevv/tabby-sub002/internal/config"
)

// Grouper asks an external model for a grouping of c. The returned bytes are
// untrusted and must go through DecodeResponse and Check.
type Grouper interface {
	Group(ctx context.Context, c *Context, instruction string) ([]byte, error)
}

// AnthropicGrouper is a Grouper backed by the Anthropic Messages API.
type AnthropicGrouper struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewAnthropicGrouper creates a grouper from the AI config. The API key is required.
func NewAnthropicGrouper(cfg config.AIConfig, opts ...option.RequestOption) (*AnthropicGrouper, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is not set (TABBY_AI_API_KEY or ANTHROPIC_API_KEY)")
	}

	reqOpts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client := anthropic.NewClient(reqOpts...)

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicGrouper{
		client:    &client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

// Group sends the context and returns the model's text reply with any code fence removed.
func (g *AnthropicGrouper) Group(ctx context.Context, c *Context, instruction string) ([]byte, error) {
	prompt, err := UserPrompt(c, instruction)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic grouping: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic grouping: empty reply (stop reason %s)", msg.StopReason)
	}
	return []byte(StripCodeFence(text.String())), nil
}

// StripCodeFence removes a surrounding ``` or ```json fence, if present.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
