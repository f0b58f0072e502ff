// Package task owns shell command executions: the task record, the registry
// that holds every task for the life of the process, and the executor that
// runs a command synchronously when it is fast and detaches it when it is not.
//
// Lifecycle:
//
//	pending → running → completed | failed
//
// A task is inserted into the registry before it starts, so a status lookup
// can observe it as pending. Terminal states never change.
package task

import (
	"os"
	"sync"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transition can leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses so a transition can only move forward.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Request describes one command invocation.
type Request struct {
	// Command is passed verbatim to the shell via -c.
	Command string `json:"command"`

	// Shell is the interpreter binary (bash, sh, zsh). Empty means DefaultShell.
	Shell string `json:"shell,omitempty"`

	// WorkingDir is where the command runs. Empty means the user's home.
	WorkingDir string `json:"working_dir,omitempty"`
}

// Task is the mutable execution record of one command.
// Identity and invocation fields are immutable after creation; everything
// else is written only by the task's own execution routine.
type Task struct {
	ID         string
	Command    string
	Shell      string
	WorkingDir string
	CreatedAt  time.Time

	mu            sync.RWMutex
	process       *os.Process
	status        Status
	stdout        string
	stderr        string
	result        *int
	executionTime *time.Duration
	startTime     time.Time
}

// Snapshot is a point-in-time copy of a task, safe to hold and read
// without synchronization.
type Snapshot struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	CreatedAt  time.Time `json:"created_at"`

	Status Status `json:"status"`

	// PID is set only while the process is running.
	PID int `json:"pid,omitempty"`

	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`

	// ExitCode is nil until the task is terminal. Zero is a real exit code.
	ExitCode *int `json:"exit_code,omitempty"`

	// ExecutionTime is nil until the task is terminal.
	ExecutionTime *time.Duration `json:"execution_time,omitempty"`

	StartTime time.Time `json:"start_time,omitempty"`
}

// Snapshot copies the current state of the task.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		ID:         t.ID,
		Command:    t.Command,
		Shell:      t.Shell,
		WorkingDir: t.WorkingDir,
		CreatedAt:  t.CreatedAt,
		Status:     t.status,
		Stdout:     t.stdout,
		Stderr:     t.stderr,
		StartTime:  t.startTime,
	}
	if t.process != nil {
		s.PID = t.process.Pid
	}
	if t.result != nil {
		code := *t.result
		s.ExitCode = &code
	}
	if t.executionTime != nil {
		d := *t.executionTime
		s.ExecutionTime = &d
	}
	return s
}

// Status returns the current lifecycle state.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// advance moves the task to next if that is a forward transition.
// Must hold t.mu.
func (t *Task) advance(next Status) bool {
	if t.status.IsTerminal() || next.rank() <= t.status.rank() {
		return false
	}
	t.status = next
	return true
}

func (t *Task) markRunning(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.advance(StatusRunning) {
		return false
	}
	t.startTime = now
	return true
}

func (t *Task) setProcess(p *os.Process) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.process = p
}

// finish records the terminal state. Only the first call has any effect.
func (t *Task) finish(status Status, stdout, stderr string, code int, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.advance(status) {
		return false
	}
	t.stdout = stdout
	t.stderr = stderr
	t.result = &code
	elapsed := now.Sub(t.startTime)
	if elapsed < 0 {
		elapsed = 0
	}
	t.executionTime = &elapsed
	t.process = nil
	return true
}
