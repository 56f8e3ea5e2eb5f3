package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration.
type Config struct {
	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// SnapshotRetentionDays is how long snapshots are kept before purge removes them.
	SnapshotRetentionDays int `json:"snapshot_retention_days,omitempty"`

	// ManagementURLPatterns are glob patterns for the extension's own pages.
	// Matching tabs never reach the grouping model.
	ManagementURLPatterns []string `json:"management_url_patterns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names ("workspace", "tab", ...) to disable entirely.
	DisabledTypes []string `json:"disabled_types,omitempty"`

	LogLevel       string `json:"log_level,omitempty"`
	LogDevelopment bool   `json:"log_development,omitempty"`

	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`

	AI AIConfig `json:"ai"`
}

// AIConfig configures the grouping model client.
type AIConfig struct {
	Model          string `json:"model,omitempty"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`

	// APIKey is only read from the environment, never from config.json.
	APIKey string `json:"-"`
}

// envOverrides is populated by envconfig from TABBY_* variables.
type envOverrides struct {
	DBMaxOpenConns        int      `envconfig:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns        int      `envconfig:"DB_MAX_IDLE_CONNS"`
	SnapshotRetentionDays int      `envconfig:"SNAPSHOT_RETENTION_DAYS"`
	ManagementURLPatterns []string `envconfig:"MANAGEMENT_URL_PATTERNS"`
	LogLevel              string   `envconfig:"LOG_LEVEL"`
	LogDevelopment        bool     `envconfig:"LOG_DEV"`
	HTTPBind              string   `envconfig:"HTTP_BIND"`
	HTTPPort              int      `envconfig:"HTTP_PORT"`
	AIModel               string   `envconfig:"AI_MODEL"`
	AIMaxTokens           int      `envconfig:"AI_MAX_TOKENS"`
	AIAPIKey              string   `envconfig:"AI_API_KEY"`
}

// EnvPrefix is the prefix for environment overrides (TABBY_LOG_LEVEL, ...).
const EnvPrefix = "tabby"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SnapshotRetentionDays: 30,
		ManagementURLPatterns: []string{
			"chrome-extension://*/tabs.html*",
			"moz-extension://*/tabs.html*",
		},
		LogLevel: "info",
		HTTPBind: "127.0.0.1",
		HTTPPort: 8787,
		AI: AIConfig{
			Model:          "claude-haiku-4-5-20251001",
			MaxTokens:      4096,
			TimeoutSeconds: 60,
		},
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.tabby.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithEnv loads baseDir/config.json and then applies TABBY_* environment overrides.
// ANTHROPIC_API_KEY is used when TABBY_AI_API_KEY is unset.
func LoadWithEnv(baseDir string) (*Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, err
	}
	if env.AIAPIKey == "" {
		env.AIAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	overlay := &Config{
		DBMaxOpenConns:        env.DBMaxOpenConns,
		DBMaxIdleConns:        env.DBMaxIdleConns,
		SnapshotRetentionDays: env.SnapshotRetentionDays,
		ManagementURLPatterns: env.ManagementURLPatterns,
		LogLevel:              env.LogLevel,
		LogDevelopment:        env.LogDevelopment,
		HTTPBind:              env.HTTPBind,
		HTTPPort:              env.HTTPPort,
		AI: AIConfig{
			Model:     env.AIModel,
			MaxTokens: env.AIMaxTokens,
			APIKey:    env.AIAPIKey,
		},
	}
	return Merge(cfg, overlay), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars. ManagementURLPatterns is replaced
// when the overlay sets it; tool lists are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.SnapshotRetentionDays = pickInt(overlay.SnapshotRetentionDays, base.SnapshotRetentionDays)
	result.HTTPPort = pickInt(overlay.HTTPPort, base.HTTPPort)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.HTTPBind = pickString(overlay.HTTPBind, base.HTTPBind)

	// Booleans: overlay wins if true, else base
	result.LogDevelopment = base.LogDevelopment || overlay.LogDevelopment

	result.AI = AIConfig{
		Model:          pickString(overlay.AI.Model, base.AI.Model),
		MaxTokens:      pickInt(overlay.AI.MaxTokens, base.AI.MaxTokens),
		TimeoutSeconds: pickInt(overlay.AI.TimeoutSeconds, base.AI.TimeoutSeconds),
		APIKey:         pickString(overlay.AI.APIKey, base.AI.APIKey),
	}

	if len(overlay.ManagementURLPatterns) > 0 {
		result.ManagementURLPatterns = mergeStringSlice(nil, overlay.ManagementURLPatterns)
	} else {
		result.ManagementURLPatterns = mergeStringSlice(nil, base.ManagementURLPatterns)
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
