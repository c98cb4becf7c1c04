package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/config"
	"github.com/hpungsan/funnier/internal/logging"
	"github.com/hpungsan/funnier/internal/mcp"
	"github.com/hpungsan/funnier/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"sync": true, "warm": true, "photos": true, "status": true,
	"last-viewed": true, "history": true, "prune": true, "export": true,
	"serve": true, "tools": true,
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

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   __                       _
  / _|_   _ _ __  _ __  (_) ___ _ __
 | |_| | | | '_ \| '_ \ | |/ _ \ '__|
 |  _| |_| | | | | | | || |  __/ |
 |_|  \__,_|_| |_|_| |_||_|\___|_|

  Offline-first photoset cache

  Usage: funnier <command> [options]
         funnier --help

  MCP server mode requires piped input.`)
}

// baseDir returns FUNNIER_HOME, or ~/.funnier.
func baseDir() (string, error) {
	if dir := os.Getenv("FUNNIER_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".funnier"), nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening storage
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	dir, err := baseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, nil)
	defer func() { _ = logger.Sync() }()

	open := func(watch bool) (*ops.Env, error) {
		return ops.Open(context.Background(), dir, cfg, ops.OpenOptions{Logger: logger, Watch: watch})
	}

	if isCLIMode() {
		app := newCLIApp(open)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'funnier --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	env, err := open(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	err = mcp.Run(env, Version)
	if cerr := env.Close(); cerr != nil {
		logger.Warn("close failed", zap.Error(cerr))
	}
	if err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}
