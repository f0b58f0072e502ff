package task

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryInsertAndLookup(t *testing.T) {
	reg := NewRegistry()
	require.Equal(t, 0, reg.Len())

	tk := &Task{ID: "abc", Command: "echo hi", Shell: "bash", WorkingDir: "/", status: StatusPending}
	require.NoError(t, reg.Insert(tk))

	snap, err := reg.Lookup("abc")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, "echo hi", snap.Command)
	assert.Nil(t, snap.ExitCode)
	assert.Nil(t, snap.ExecutionTime)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryDuplicateID(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Insert(&Task{ID: "dupe"}))

	err := reg.Insert(&Task{ID: "dupe"})
	require.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryLookupUnknown(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Lookup("missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestRegistryConcurrentInsertAndRead(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		id := fmt.Sprintf("task-%d", i)
		go func() {
			defer wg.Done()
			_ = reg.Insert(&Task{ID: id, status: StatusPending})
		}()
		go func() {
			defer wg.Done()
			_, _ = reg.Lookup(id)
			_ = reg.Len()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, reg.Len())
}

func TestTaskTransitionsOnlyMoveForward(t *testing.T) {
	tk := &Task{ID: "x", status: StatusPending}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, tk.markRunning(start))
	assert.False(t, tk.markRunning(start), "running twice")

	require.True(t, tk.finish(StatusCompleted, "out", "", 0, start.Add(1500*time.Millisecond)))
	assert.False(t, tk.finish(StatusFailed, "", "late", FailedExitCode, start.Add(time.Hour)), "terminal state changed")

	snap := tk.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, "out", snap.Stdout)
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, 0, *snap.ExitCode)
	require.NotNil(t, snap.ExecutionTime)
	assert.Equal(t, 1500*time.Millisecond, *snap.ExecutionTime)
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}
