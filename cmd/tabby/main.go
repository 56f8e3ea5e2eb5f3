package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
	"github.com/lmdevv/tabby-sub002/internal/logging"
	"github.com/lmdevv/tabby-sub002/internal/mcp"
	"github.com/lmdevv/tabby-sub002/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"workspace": true, "tab": true, "snapshot": true,
	"context": true, "apply": true, "organize": true,
	"setting": true, "resource": true, "ui": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
   _        _     _
  | |_ __ _| |__ | |__  _   _
  | __/ _' | '_ \| '_ \| | | |
  | || (_| | |_) | |_) | |_| |
   \__\__,_|_.__/|_.__/ \__, |
                        |___/
  Persistent browser workspaces

  Usage: tabby <command> [options]
         tabby --help

  MCP server mode requires piped input.`)
}

// baseDirectory is ~/.tabby unless TABBY_HOME is set.
func baseDirectory() (string, error) {
	if dir := os.Getenv("TABBY_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".tabby"), nil
}

// newGrouper returns the model client, or nil when no API key is configured.
func newGrouper(cfg *config.Config, logger *zap.Logger) grouping.Grouper {
	if cfg.AI.APIKey == "" {
		logger.Debug("no AI API key configured, organize is disabled")
		return nil
	}
	g, err := grouping.NewAnthropicGrouper(cfg.AI)
	if err != nil {
		logger.Warn("grouping model unavailable", zap.Error(err))
		return nil
	}
	return g
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	baseDir, err := baseDirectory()
	if err != nil {
		fail("%v", err)
	}

	cfg, err := config.LoadWithEnv(baseDir)
	if err != nil {
		fail("failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fail("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	rt := &appEnv{
		db:         database,
		cfg:        cfg,
		grouper:    newGrouper(cfg, logger),
		logger:     logger,
		baseDir:    baseDir,
		exportsDir: filepath.Join(baseDir, ops.ExportsDirName),
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(rt)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'tabby --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	h := mcp.NewHandlers(database, cfg, rt.exportsDir, rt.grouper, logger)
	if err := mcp.Run(h, Version); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		database.Close()
		os.Exit(1)
	}
}
