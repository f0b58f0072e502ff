package shell

import (
	"context"
	"fmt"
	"strings"

	"asyncshell/internal/logging"
	"asyncshell/internal/task"
	"asyncshell/internal/tools"
)

// Lookuper resolves task ids. Satisfied by *task.Executor and *task.Registry.
type Lookuper interface {
	Lookup(id string) (task.Snapshot, error)
}

// Reporter renders task state as text. It only reads.
type Reporter struct {
	tasks Lookuper
}

// NewReporter creates a reporter over tasks.
func NewReporter(tasks Lookuper) *Reporter {
	return &Reporter{tasks: tasks}
}

// Report returns the status text for taskID.
// Fails with task.ErrInvalidArgument for an empty id and task.ErrNotFound
// for an unknown one.
func (r *Reporter) Report(taskID string) (string, error) {
	if taskID == "" {
		return "", fmt.Errorf("%w: missing task_id parameter", task.ErrInvalidArgument)
	}

	snap, err := r.tasks.Lookup(taskID)
	if err != nil {
		return "", err
	}

	logging.ToolsDebug("Checking status of task %s: %s", taskID, snap.Status)
	return FormatStatus(snap), nil
}

// ShellStatusTool returns the tool that reports on tasks started by shell.
func ShellStatusTool(tasks Lookuper) *tools.Tool {
	reporter := NewReporter(tasks)
	return &tools.Tool{
		Name: "shell_status",
		Description: `Check the status of a shell command that switched to async mode.
Provide the task ID that was returned by the shell command.`,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			taskID, _ := args["task_id"].(string)
			return reporter.Report(taskID)
		},
		Schema: tools.ToolSchema{
			Required: []string{"task_id"},
			Properties: map[string]tools.Property{
				"task_id": {
					Type:        "string",
					Description: "Task ID from shell command",
				},
			},
		},
	}
}

// FormatStatus renders a snapshot for shell_status. Only populated fields
// are shown; a zero exit code is populated.
func FormatStatus(s task.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", s.Status)
	if s.ExecutionTime != nil {
		fmt.Fprintf(&b, "Execution time: %.4f seconds\n", s.ExecutionTime.Seconds())
	}
	if s.Stdout != "" {
		fmt.Fprintf(&b, "\nStandard Output:\n%s\n", s.Stdout)
	}
	if s.Stderr != "" {
		fmt.Fprintf(&b, "\nStandard Error:\n%s\n", s.Stderr)
	}
	if s.ExitCode != nil {
		fmt.Fprintf(&b, "\nReturn Value:\n%d", *s.ExitCode)
	}
	return b.String()
}

// FormatResult renders a terminal snapshot returned inline by shell.
func FormatResult(s task.Snapshot) string {
	var b strings.Builder
	if s.Stdout != "" {
		fmt.Fprintf(&b, "Standard Output:\n%s\n", s.Stdout)
	}
	if s.Stderr != "" {
		fmt.Fprintf(&b, "Standard Error:\n%s\n", s.Stderr)
	}
	var seconds float64
	if s.ExecutionTime != nil {
		seconds = s.ExecutionTime.Seconds()
	}
	fmt.Fprintf(&b, "Execution time: %.4f seconds\n", seconds)

	code := task.FailedExitCode
	if s.ExitCode != nil {
		code = *s.ExitCode
	}
	fmt.Fprintf(&b, "Return Value:\n%d", code)
	return b.String()
}

// FormatStarted renders the async handoff message.
func FormatStarted(id string) string {
	return fmt.Sprintf("Task started with ID: %s\nUse shell_status with this task ID to check progress.", id)
}
