package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names a lifecycle event in the audit trail.
type AuditEventType string

const (
	// Task lifecycle
	AuditTaskCreated   AuditEventType = "task_created"
	AuditTaskStarted   AuditEventType = "task_started"
	AuditTaskDetached  AuditEventType = "task_detached"
	AuditTaskCompleted AuditEventType = "task_completed"
	AuditTaskFailed    AuditEventType = "task_failed"

	// Tool dispatch
	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"
)

// AuditEvent is one structured audit entry.
type AuditEvent struct {
	EventType AuditEventType
	TaskID    string
	Target    string // command or tool name
	Success   bool
	Duration  time.Duration
	ExitCode  *int
	Error     string
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger writes audit events as structured entries in the audit category.
type AuditLogger struct {
	taskID string
}

// Audit returns an audit logger with no task correlation.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithTask returns an audit logger that stamps every event with taskID.
func AuditWithTask(taskID string) *AuditLogger {
	return &AuditLogger{taskID: taskID}
}

// Log writes the event.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsCategoryEnabled(CategoryAudit) {
		return
	}
	if event.TaskID == "" {
		event.TaskID = a.taskID
	}

	fields := []zap.Field{
		zap.String("event", string(event.EventType)),
		zap.Bool("success", event.Success),
	}
	if event.TaskID != "" {
		fields = append(fields, zap.String("task_id", event.TaskID))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Duration > 0 {
		fields = append(fields, zap.Duration("duration", event.Duration))
	}
	if event.ExitCode != nil {
		fields = append(fields, zap.Int("exit_code", *event.ExitCode))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}

	Zap().Named(string(CategoryAudit)).Info("audit", fields...)
}

// TaskCreated records a task entering the registry.
func (a *AuditLogger) TaskCreated(command string) {
	a.Log(AuditEvent{EventType: AuditTaskCreated, Target: command, Success: true})
}

// TaskStarted records process spawn.
func (a *AuditLogger) TaskStarted(command string) {
	a.Log(AuditEvent{EventType: AuditTaskStarted, Target: command, Success: true})
}

// TaskDetached records the sync deadline elapsing before completion.
func (a *AuditLogger) TaskDetached(waited time.Duration) {
	a.Log(AuditEvent{EventType: AuditTaskDetached, Duration: waited, Success: true})
}

// TaskFinished records a terminal state.
func (a *AuditLogger) TaskFinished(completed bool, exitCode int, elapsed time.Duration, errMsg string) {
	eventType := AuditTaskCompleted
	if !completed {
		eventType = AuditTaskFailed
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Success:   completed,
		Duration:  elapsed,
		ExitCode:  &exitCode,
		Error:     errMsg,
	})
}

// ToolExec records a tool dispatch outcome.
func (a *AuditLogger) ToolExec(toolName string, elapsed time.Duration, err error) {
	event := AuditEvent{
		EventType: AuditToolComplete,
		Target:    toolName,
		Success:   err == nil,
		Duration:  elapsed,
	}
	if err != nil {
		event.EventType = AuditToolError
		event.Error = err.Error()
	}
	a.Log(event)
}
