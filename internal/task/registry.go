package task

import (
	"fmt"
	"sync"
)

// Registry holds every task created by an executor.
// Entries are inserted once and never removed or replaced.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
	}
}

// Insert adds a task. Returns ErrDuplicateID if the id is taken.
func (r *Registry) Insert(t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}
	r.tasks[t.ID] = t
	return nil
}

// Get returns the live task record, or false if the id is unknown.
func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Lookup returns a snapshot of the task with the given id.
func (r *Registry) Lookup(id string) (Snapshot, error) {
	t, ok := r.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.Snapshot(), nil
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
