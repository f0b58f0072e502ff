package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"asyncshell/internal/config"
	"asyncshell/internal/logging"
	"asyncshell/internal/mcp"
	"asyncshell/internal/task"
	"asyncshell/internal/tools"
	"asyncshell/internal/tools/shell"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the shell tools as an MCP server on stdio",
		Long: `Serves the shell and shell_status tools over the MCP stdio transport
(line-delimited JSON-RPC 2.0 on stdin/stdout). Logs go to stderr or the
configured log file.

On EOF the server answers queued tool calls before stopping. On SIGINT or
SIGTERM it stops reading at once. Either way it then waits for background
tasks (bounded by execution.shutdown_timeout). A second signal exits immediately.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, stop, cfg, configPath, os.Stdin, os.Stdout)
}

// serve wires the executor, tools and server together and blocks until the
// server stops and background tasks have drained. release is called once the
// server stops reading, so a caller can restore default signal handling.
func serve(ctx context.Context, release func(), cfg *config.Config, path string, in io.Reader, out io.Writer) error {
	executor := task.NewExecutor(task.NewRegistry(), task.WithSyncTimeout(cfg.GetSyncTimeout()))

	registry := tools.NewRegistry()
	opts := shell.Options{
		DefaultShell:  cfg.Execution.DefaultShell,
		AllowedShells: cfg.Execution.AllowedShells,
	}
	if err := shell.RegisterAll(registry, executor, opts); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	if path != "" {
		watcher, err := config.NewWatcher(path, applyReload)
		if err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
			watcher.Stop()
		} else {
			defer watcher.Stop()
		}
	}

	logger.Info("asyncshell serving",
		zap.String("version", cfg.Server.Version),
		zap.Duration("sync_timeout", executor.SyncTimeout()),
		zap.Strings("tools", registry.Names()))

	srv, err := mcp.NewServer(registry,
		mcp.ServerInfo{Name: cfg.Server.Name, Version: cfg.Server.Version},
		mcp.WithWorkers(cfg.Server.Workers))
	if err != nil {
		return err
	}
	serveErr := srv.Serve(ctx, in, out)
	if release != nil {
		release()
	}

	waitCtx := context.Background()
	if d := cfg.GetShutdownTimeout(); d > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, d)
		defer cancel()
	}
	if err := executor.Wait(waitCtx); err != nil {
		logger.Warn("exiting with background tasks still running",
			zap.Int("running", executor.Running()), zap.Error(err))
	}

	return serveErr
}

// applyReload applies the settings that can change without a restart.
// Execution settings are fixed for the life of the process.
func applyReload(next *config.Config) {
	level := next.Logging.Level
	if next.Logging.DebugMode {
		level = "debug"
	}
	if err := logging.SetLevel(level); err != nil {
		logging.ConfigWarn("ignoring reloaded log level: %v", err)
		return
	}
	logging.Config("config reloaded, log level %s", logging.Level())
}
