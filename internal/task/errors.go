package task

import "errors"

// Task errors. Execution failures are not errors: they are recorded in the
// task itself as StatusFailed with exit code -1.
var (
	// ErrInvalidArgument is returned for an empty command or an unusable working directory.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when no task has the requested id.
	ErrNotFound = errors.New("task not found")

	// ErrDuplicateID is returned when inserting a task whose id is already registered.
	ErrDuplicateID = errors.New("task id already registered")
)
