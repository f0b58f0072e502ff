package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"asyncshell/internal/logging"

	"github.com/google/uuid"
)

const (
	// DefaultSyncTimeout is how long Submit waits before detaching.
	DefaultSyncTimeout = 5 * time.Second

	// DefaultShell is used when a request names no shell.
	DefaultShell = "bash"

	// FailedExitCode is recorded when the process could not be run or awaited.
	FailedExitCode = -1
)

// Outcome tells the caller whether Submit waited for the task to finish.
type Outcome int

const (
	// OutcomeSync means the task reached a terminal state within the deadline.
	OutcomeSync Outcome = iota

	// OutcomeDetached means the deadline elapsed and the task keeps running
	// in the background. Poll Lookup with the task id for the result.
	OutcomeDetached
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSync:
		return "sync"
	case OutcomeDetached:
		return "detached"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Executor creates tasks, runs them, and hands slow ones off to the background.
type Executor struct {
	registry    *Registry
	syncTimeout time.Duration
	homeDir     func() (string, error)
	now         func() time.Time

	wg      sync.WaitGroup
	running atomic.Int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithSyncTimeout sets the deadline after which Submit detaches.
func WithSyncTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.syncTimeout = d
		}
	}
}

// WithHomeDir overrides how the default working directory is resolved.
func WithHomeDir(fn func() (string, error)) Option {
	return func(e *Executor) {
		if fn != nil {
			e.homeDir = fn
		}
	}
}

// NewExecutor creates an executor that records its tasks in registry.
func NewExecutor(registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		registry:    registry,
		syncTimeout: DefaultSyncTimeout,
		homeDir:     os.UserHomeDir,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncTimeout returns the deadline after which Submit detaches.
func (e *Executor) SyncTimeout() time.Duration {
	return e.syncTimeout
}

// Registry returns the registry this executor writes to.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Submit validates req, registers a new task and starts it.
//
// If the task finishes within the sync timeout the terminal snapshot is
// returned with OutcomeSync. Otherwise, or if ctx ends first, the current
// snapshot is returned with OutcomeDetached and the process keeps running;
// ctx never kills it. The command is spawned exactly once either way.
func (e *Executor) Submit(ctx context.Context, req Request) (Snapshot, Outcome, error) {
	t, err := e.newTask(req)
	if err != nil {
		logging.TasksDebug("rejected request: %v", err)
		return Snapshot{}, OutcomeSync, err
	}
	if err := e.registry.Insert(t); err != nil {
		return Snapshot{}, OutcomeSync, err
	}

	log := logging.Get(logging.CategoryTasks).With("task_id", t.ID)
	log.Info("created task for command: %s", t.Command)
	logging.AuditWithTask(t.ID).TaskCreated(t.Command)

	done := make(chan struct{})
	e.wg.Add(1)
	e.running.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.running.Add(-1)
		defer close(done)
		e.run(t)
	}()

	timer := time.NewTimer(e.syncTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return t.Snapshot(), OutcomeSync, nil
	case <-timer.C:
		log.Info("command taking longer than %v, switching to async mode", e.syncTimeout)
	case <-ctx.Done():
		log.Info("caller stopped waiting (%v), switching to async mode", ctx.Err())
	}
	logging.AuditWithTask(t.ID).TaskDetached(e.syncTimeout)
	return t.Snapshot(), OutcomeDetached, nil
}

// Lookup returns a snapshot of the task with the given id.
func (e *Executor) Lookup(id string) (Snapshot, error) {
	return e.registry.Lookup(id)
}

// Running returns the number of executions that have not finished yet.
func (e *Executor) Running() int {
	return int(e.running.Load())
}

// Wait blocks until every started execution has finished or ctx ends.
func (e *Executor) Wait(ctx context.Context) error {
	if n := e.Running(); n > 0 {
		logging.Tasks("waiting for %d running task(s)", n)
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logging.TasksWarn("stopped waiting with %d task(s) still running", e.Running())
		return fmt.Errorf("waiting for %d running task(s): %w", e.Running(), ctx.Err())
	}
}

func (e *Executor) newTask(req Request) (*Task, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("%w: missing command parameter", ErrInvalidArgument)
	}

	shell := req.Shell
	if shell == "" {
		shell = DefaultShell
	}

	dir := req.WorkingDir
	if dir == "" {
		home, err := e.homeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve home directory: %v", ErrInvalidArgument, err)
		}
		dir = home
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: working directory does not exist: %s", ErrInvalidArgument, dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: working directory is not a directory: %s", ErrInvalidArgument, dir)
	}

	return &Task{
		ID:         uuid.NewString(),
		Command:    req.Command,
		Shell:      shell,
		WorkingDir: dir,
		CreatedAt:  e.now(),
		status:     StatusPending,
	}, nil
}

// run executes t once and records the terminal state. It never returns an
// error: spawn and wait failures become StatusFailed with FailedExitCode.
func (e *Executor) run(t *Task) {
	log := logging.Get(logging.CategoryTasks).With("task_id", t.ID)
	audit := logging.AuditWithTask(t.ID)

	if !t.markRunning(e.now()) {
		log.Warn("task is not pending (status=%s), refusing to run again", t.Status())
		return
	}
	audit.TaskStarted(t.Command)

	fail := func(err error) {
		msg := fmt.Sprintf("Error executing command: %v", err)
		log.Error("%s", msg)
		if t.finish(StatusFailed, "", msg, FailedExitCode, e.now()) {
			snap := t.Snapshot()
			audit.TaskFinished(false, FailedExitCode, *snap.ExecutionTime, msg)
		}
	}

	log.Debug("creating subprocess: %s -c %q (dir=%s)", t.Shell, t.Command, t.WorkingDir)
	cmd := exec.Command(t.Shell, "-c", t.Command)
	cmd.Dir = t.WorkingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		fail(err)
		return
	}
	t.setProcess(cmd.Process)
	log.Info("process created with PID: %d", cmd.Process.Pid)

	err := cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fail(err)
		return
	}

	code := exitCode(cmd.ProcessState)
	errText := decode(stderr.Bytes())
	if !t.finish(StatusCompleted, decode(stdout.Bytes()), errText, code, e.now()) {
		return
	}

	snap := t.Snapshot()
	log.Info("task completed with return code: %d", code)
	if errText != "" {
		log.Warn("task stderr output: %s", errText)
	}
	audit.TaskFinished(true, code, *snap.ExecutionTime, "")
}

// exitCode reports the process's exit status, or -N when it was killed by
// signal N. ProcessState.ExitCode alone reports -1 for every signal, which
// would read as a failure to execute.
func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}

// decode turns captured bytes into text, replacing invalid UTF-8.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
