package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"asyncshell/internal/task"
	"asyncshell/internal/tools/shell"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExecCmd() *cobra.Command {
	var (
		shellName string
		dir       string
		poll      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exec [command...]",
		Short: "Run one command through the executor",
		Long: `Runs a command the same way the shell tool does. If it outlives the
sync timeout the task ID is printed to stderr and the command is polled
until it ends. Exits with the command's exit code.

Example:
  asyncshell exec -- ls -la
  asyncshell exec --dir /tmp --shell sh "sleep 7; echo done"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, strings.Join(args, " "), shellName, dir, poll)
		},
	}

	cmd.Flags().StringVar(&shellName, "shell", "", "Shell to run the command with (default from config)")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory (default: home directory)")
	cmd.Flags().DurationVar(&poll, "poll", 500*time.Millisecond, "Status poll interval for background tasks")
	return cmd
}

func runExec(cmd *cobra.Command, command, shellName, dir string, poll time.Duration) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if shellName == "" {
		shellName = cfg.Execution.DefaultShell
	}
	if !slices.Contains(cfg.Execution.AllowedShells, shellName) {
		return fmt.Errorf("shell %q is not allowed (allowed: %v)", shellName, cfg.Execution.AllowedShells)
	}
	if poll <= 0 {
		return fmt.Errorf("--poll must be positive, got %v", poll)
	}

	executor := task.NewExecutor(task.NewRegistry(), task.WithSyncTimeout(cfg.GetSyncTimeout()))
	snap, outcome, err := executor.Submit(ctx, task.Request{
		Command:    command,
		Shell:      shellName,
		WorkingDir: dir,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outcome == task.OutcomeDetached {
		fmt.Fprintln(cmd.ErrOrStderr(), shell.FormatStarted(snap.ID))
		snap, err = pollUntilDone(ctx, executor, snap.ID, poll)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, shell.FormatStatus(snap))
	} else {
		fmt.Fprintln(out, shell.FormatResult(snap))
	}

	// The task is terminal; this only waits for the execution goroutine to return.
	_ = executor.Wait(ctx)

	return exitFor(snap)
}

// pollUntilDone looks the task up every interval until it is terminal.
func pollUntilDone(ctx context.Context, executor *task.Executor, id string, interval time.Duration) (task.Snapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return task.Snapshot{}, fmt.Errorf("stopped polling task %s: %w", id, ctx.Err())
		case <-ticker.C:
			snap, err := executor.Lookup(id)
			if err != nil {
				return task.Snapshot{}, err
			}
			logger.Debug("polled task", zap.String("task_id", id), zap.String("status", string(snap.Status)))
			if snap.Status.IsTerminal() {
				return snap, nil
			}
		}
	}
}

// exitFor maps a terminal task to the process exit status. A command killed
// by signal N exits 128+N, as a shell would report it.
func exitFor(snap task.Snapshot) error {
	if snap.ExitCode == nil || *snap.ExitCode == 0 {
		return nil
	}
	code := *snap.ExitCode
	switch {
	case code < task.FailedExitCode && code >= -127:
		code = 128 - code
	case code < 0 || code > 255:
		code = 1
	}
	return &exitError{code: code}
}
