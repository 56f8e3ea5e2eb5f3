package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db         *sql.DB
	cfg        *config.Config
	exportsDir string
	grouper    grouping.Grouper // nil disables grouping_organize
	logger     *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, exportsDir string, grouper grouping.Grouper, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		db:         db,
		cfg:        cfg,
		exportsDir: exportsDir,
		grouper:    grouper,
		logger:     logger,
	}
}

// fail turns an operation error into a tool error result. A failure caused
// by the client going away is reported as CANCELLED; server-side failures are
// logged with their cause.
func (h *Handlers) fail(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	if ctx.Err() != nil && !errors.Is(err, errors.ErrCancelled) {
		err = errors.NewCancelled(tool)
	}
	if te, ok := errors.As(err); !ok || te.Status >= 500 {
		h.logger.Error("tool failed", zap.String("tool", tool), zap.Error(err), zap.Any("details", detailsOf(err)))
	}
	return errorResult(err)
}

func detailsOf(err error) map[string]any {
	if te, ok := errors.As(err); ok {
		return te.Details
	}
	return nil
}

// requireID rejects a missing or non-positive id argument.
func requireID(name string, id int64) error {
	if id <= 0 {
		return errors.NewInvalidRequest(name + " is required")
	}
	return nil
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if te, ok := errors.As(err); ok {
		msg := te.Message
		// keep context added by wrapping, e.g. "groups[2]: ..."
		if full := err.Error(); full != te.Error() {
			msg = strings.TrimSuffix(full, te.Error()) + te.Message
		}
		errorObj := map[string]any{
			"code":    te.Code,
			"message": msg,
			"status":  te.Status,
		}
		if te.Code != errors.ErrInternal && te.Code != errors.ErrTransactionFailed && te.Details != nil {
			errorObj["details"] = te.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

// listResult wraps a slice as {"<key>": items, "count": n}.
func listResult[T any](key string, items []T) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{key: items, "count": len(items)})
}
