package task

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// newTestExecutor returns an executor whose detached work is drained before
// the test ends, so goleak sees no stray goroutines.
func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	e := NewExecutor(NewRegistry(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Wait(ctx); err != nil {
			t.Errorf("executor did not drain: %v", err)
		}
	})
	return e
}

func submitSh(t *testing.T, e *Executor, command string) (Snapshot, Outcome) {
	t.Helper()
	snap, outcome, err := e.Submit(context.Background(), Request{
		Command:    command,
		Shell:      "sh",
		WorkingDir: t.TempDir(),
	})
	require.NoError(t, err)
	return snap, outcome
}

func TestSubmit_SyncEcho(t *testing.T) {
	e := newTestExecutor(t)

	snap, outcome := submitSh(t, e, "echo hi")

	assert.Equal(t, OutcomeSync, outcome)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, "hi\n", snap.Stdout)
	assert.Empty(t, snap.Stderr)
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, 0, *snap.ExitCode)
	require.NotNil(t, snap.ExecutionTime)
	assert.GreaterOrEqual(t, *snap.ExecutionTime, time.Duration(0))
	assert.False(t, snap.StartTime.IsZero())
	assert.Zero(t, snap.PID, "process handle should be released once terminal")
}

func TestSubmit_BashScenario(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	e := newTestExecutor(t)

	snap, outcome, err := e.Submit(context.Background(), Request{Command: "echo hi", Shell: "bash", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSync, outcome)
	assert.Equal(t, "hi\n", snap.Stdout)
}

func TestSubmit_NonZeroExitIsCompleted(t *testing.T) {
	e := newTestExecutor(t)

	snap, outcome := submitSh(t, e, "exit 7")

	assert.Equal(t, OutcomeSync, outcome)
	assert.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, 7, *snap.ExitCode)
}

func TestSubmit_SignalKilledReportsNegativeSignal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no POSIX signals")
	}
	e := newTestExecutor(t)

	snap, outcome := submitSh(t, e, "kill -9 $$")

	assert.Equal(t, OutcomeSync, outcome)
	assert.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, -9, *snap.ExitCode)
}

func TestSubmit_UnknownCommandExits127(t *testing.T) {
	e := newTestExecutor(t)

	snap, outcome := submitSh(t, e, "nonexistent_binary_xyz")

	assert.Equal(t, OutcomeSync, outcome)
	assert.Equal(t, StatusCompleted, snap.Status, "the shell ran; only the command was missing")
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, 127, *snap.ExitCode)
	assert.Contains(t, snap.Stderr, "not found")
}

func TestSubmit_CapturesStderrSeparately(t *testing.T) {
	e := newTestExecutor(t)

	snap, _ := submitSh(t, e, "echo out; echo err 1>&2")

	assert.Equal(t, "out\n", snap.Stdout)
	assert.Equal(t, "err\n", snap.Stderr)
}

func TestSubmit_RunsInWorkingDir(t *testing.T) {
	e := newTestExecutor(t)
	dir := t.TempDir()

	snap, _, err := e.Submit(context.Background(), Request{Command: "pwd", Shell: "sh", WorkingDir: dir})
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(snap.Stdout))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSubmit_DefaultsToHomeDir(t *testing.T) {
	home := t.TempDir()
	e := newTestExecutor(t, WithHomeDir(func() (string, error) { return home, nil }))

	snap, _, err := e.Submit(context.Background(), Request{Command: "pwd", Shell: "sh"})
	require.NoError(t, err)

	assert.Equal(t, home, snap.WorkingDir)
	assert.Equal(t, "sh", snap.Shell)
}

func TestSubmit_DefaultShell(t *testing.T) {
	if _, err := exec.LookPath(DefaultShell); err != nil {
		t.Skip("bash not installed")
	}
	e := newTestExecutor(t)

	snap, _, err := e.Submit(context.Background(), Request{Command: "true", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DefaultShell, snap.Shell)
}

func TestSubmit_InvalidArguments(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name    string
		req     Request
		homeErr error
	}{
		{name: "empty command", req: Request{Command: "", WorkingDir: t.TempDir()}},
		{name: "missing working dir", req: Request{Command: "echo hi", WorkingDir: "/definitely/does/not/exist"}},
		{name: "working dir is a file", req: Request{Command: "echo hi", WorkingDir: file}},
		{name: "home unresolvable", req: Request{Command: "echo hi"}, homeErr: errors.New("no home")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExecutor(t, WithHomeDir(func() (string, error) { return "", tt.homeErr }))

			_, _, err := e.Submit(context.Background(), tt.req)

			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, 0, e.Registry().Len(), "no task may be created")
		})
	}
}

func TestSubmit_MissingShellFails(t *testing.T) {
	e := newTestExecutor(t)

	snap, outcome, err := e.Submit(context.Background(), Request{
		Command:    "echo hi",
		Shell:      "nonexistent_binary_xyz",
		WorkingDir: t.TempDir(),
	})
	require.NoError(t, err, "execution failures are task state, not call errors")

	assert.Equal(t, OutcomeSync, outcome)
	assert.Equal(t, StatusFailed, snap.Status)
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, FailedExitCode, *snap.ExitCode)
	assert.Contains(t, snap.Stderr, "Error executing command")
	assert.Contains(t, snap.Stderr, "nonexistent_binary_xyz")
	require.NotNil(t, snap.ExecutionTime)
}

func TestSubmit_DetachesAfterDeadline(t *testing.T) {
	e := newTestExecutor(t, WithSyncTimeout(100*time.Millisecond))
	dir := t.TempDir()

	start := time.Now()
	snap, outcome, err := e.Submit(context.Background(), Request{
		Command:    "echo spawned >> marker; sleep 1 && echo done",
		Shell:      "sh",
		WorkingDir: dir,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 900*time.Millisecond, "Submit must return near the deadline")
	assert.Equal(t, OutcomeDetached, outcome)
	require.NotEmpty(t, snap.ID)

	running, err := e.Lookup(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, running.Status)
	assert.Nil(t, running.ExitCode)
	assert.Nil(t, running.ExecutionTime)
	assert.NotZero(t, running.PID)

	require.Eventually(t, func() bool {
		s, err := e.Lookup(snap.ID)
		return err == nil && s.Status.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)

	final, err := e.Lookup(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, "done\n", final.Stdout)
	require.NotNil(t, final.ExitCode)
	assert.Equal(t, 0, *final.ExitCode)
	require.NotNil(t, final.ExecutionTime)
	assert.GreaterOrEqual(t, *final.ExecutionTime, time.Second)

	marker, err := os.ReadFile(filepath.Join(dir, "marker"))
	require.NoError(t, err)
	assert.Equal(t, "spawned\n", string(marker), "command must run exactly once")
}

func TestSubmit_CancelledContextDetachesWithoutKilling(t *testing.T) {
	e := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, outcome, err := e.Submit(ctx, Request{Command: "sleep 0.2; echo survived", Shell: "sh", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDetached, outcome)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, e.Wait(waitCtx))

	final, err := e.Lookup(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, "survived\n", final.Stdout)
}

func TestLookup_StatusNeverRegresses(t *testing.T) {
	e := newTestExecutor(t, WithSyncTimeout(20*time.Millisecond))

	snap, outcome := submitSh(t, e, "sleep 0.3")
	require.Equal(t, OutcomeDetached, outcome)

	last := StatusPending
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, err := e.Lookup(snap.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, s.Status.rank(), last.rank(), "status went from %s to %s", last, s.Status)
		if s.Status.IsTerminal() {
			require.NotNil(t, s.ExecutionTime)
		} else {
			require.Nil(t, s.ExecutionTime)
		}
		last = s.Status
		if last.IsTerminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, StatusCompleted, last)
}

func TestLookup_UnknownID(t *testing.T) {
	e := newTestExecutor(t)

	_, err := e.Lookup("no-such-task")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubmit_ConcurrentTasksGetUniqueIDs(t *testing.T) {
	e := newTestExecutor(t)

	const n = 10
	ids := make([]string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			snap, _, err := e.Submit(context.Background(), Request{Command: "echo x", Shell: "sh", WorkingDir: os.TempDir()})
			ids[i] = snap.ID
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, e.Registry().Len())
}

func TestWait_TimesOutWhileTasksRun(t *testing.T) {
	e := newTestExecutor(t, WithSyncTimeout(10*time.Millisecond))

	_, outcome := submitSh(t, e, "sleep 0.5")
	require.Equal(t, OutcomeDetached, outcome)
	assert.Equal(t, 1, e.Running())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "sync", OutcomeSync.String())
	assert.Equal(t, "detached", OutcomeDetached.String())
}
