package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"asyncshell/internal/config"
	"asyncshell/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// buildVersion is overridden with -ldflags "-X main.buildVersion=...".
var buildVersion = "0.1.0"

var (
	// Global flags
	configPath string
	verbose    bool

	// Set by PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// exitError carries a process exit code out of a command without printing.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "asyncshell",
		Short: "Shell command tool with a synchronous deadline and background continuation",
		Long: `asyncshell runs shell commands on behalf of an agent.

A command that finishes within the sync timeout returns its output directly.
A slower one keeps running in the background and returns a task ID that the
shell_status tool reports on until the command ends.

Run "asyncshell serve" to expose the shell and shell_status tools as an MCP
server on stdio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if verbose {
				loaded.Logging.DebugMode = true
			}
			if err := logging.Initialize(loaded.Logging.Options()); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			cfg = loaded
			logger = logging.Zap()
			logging.BootDebug("config loaded (path=%q, sync_timeout=%s)", configPath, loaded.Execution.SyncTimeout)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("ASYNCSHELL_CONFIG"), "Path to YAML config (env ASYNCSHELL_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newExecCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func main() {
	err := newRootCmd().Execute()

	var exit *exitError
	if err != nil && !errors.As(err, &exit) {
		logging.BootError("%s failed: %v", strings.Join(os.Args, " "), err)
	}
	_ = logging.Sync()

	switch {
	case err == nil:
	case exit != nil:
		os.Exit(exit.code)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
