package shell

import (
	"context"
	"fmt"
	"slices"
	"time"

	"asyncshell/internal/logging"
	"asyncshell/internal/task"
	"asyncshell/internal/tools"
)

// Submitter starts commands. Satisfied by *task.Executor.
type Submitter interface {
	Submit(ctx context.Context, req task.Request) (task.Snapshot, task.Outcome, error)
	SyncTimeout() time.Duration
}

// Options configures the shell tool.
type Options struct {
	// DefaultShell is used when the caller names none.
	DefaultShell string

	// AllowedShells is the enum offered in the schema.
	AllowedShells []string
}

// DefaultOptions returns the bash/sh/zsh defaults.
func DefaultOptions() Options {
	return Options{
		DefaultShell:  "bash",
		AllowedShells: []string{"bash", "sh", "zsh"},
	}
}

// ShellTool returns the tool that executes shell commands with automatic async fallback.
func ShellTool(sub Submitter, opts Options) *tools.Tool {
	if opts.DefaultShell == "" {
		opts.DefaultShell = DefaultOptions().DefaultShell
	}
	if len(opts.AllowedShells) == 0 {
		opts.AllowedShells = DefaultOptions().AllowedShells
	}

	enum := make([]any, 0, len(opts.AllowedShells))
	for _, s := range opts.AllowedShells {
		enum = append(enum, s)
	}

	return &tools.Tool{
		Name:        "shell",
		Description: shellDescription(sub.SyncTimeout()),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeShell(ctx, sub, opts, args)
		},
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "Shell command to execute",
				},
				"shell": {
					Type:        "string",
					Description: "Shell to use",
					Default:     opts.DefaultShell,
					Enum:        enum,
				},
				"working_dir": {
					Type:        "string",
					Description: "Working directory to execute the command in (defaults to user home)",
					Default:     "",
				},
			},
		},
	}
}

func shellDescription(timeout time.Duration) string {
	return fmt.Sprintf(`Execute shell commands with automatic async fallback.

If the command completes within %g seconds, you'll get the result immediately.
If it takes longer, you'll get a task ID that you can use to check status with shell_status.

Example responses:
1. Quick command:
   Standard Output: <output>
   Standard Error: <error>
   Return Value: 0

2. Long-running command:
   Task started with ID: 1234-5678-90
   Use shell_status with this task ID to check progress.`, timeout.Seconds())
}

func executeShell(ctx context.Context, sub Submitter, opts Options, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("%w: missing command parameter", task.ErrInvalidArgument)
	}

	shell, _ := args["shell"].(string)
	if shell == "" {
		shell = opts.DefaultShell
	}
	if !slices.Contains(opts.AllowedShells, shell) {
		return "", fmt.Errorf("%w: unsupported shell %q (allowed: %v)", task.ErrInvalidArgument, shell, opts.AllowedShells)
	}

	workingDir, _ := args["working_dir"].(string)

	logging.ToolsDebug("shell: cmd=%s, shell=%s, dir=%s", command, shell, workingDir)

	snap, outcome, err := sub.Submit(ctx, task.Request{
		Command:    command,
		Shell:      shell,
		WorkingDir: workingDir,
	})
	if err != nil {
		return "", err
	}

	if outcome == task.OutcomeDetached {
		return FormatStarted(snap.ID), nil
	}
	return FormatResult(snap), nil
}
