package pool

import (
	"errors"
	"fmt"
)

// Configuration errors, returned by New.
var (
	ErrNilProcessFunc       = errors.New("process function is nil")
	ErrInvalidWorkerCount   = errors.New("worker count must be at least 1")
	ErrInvalidQueueCapacity = errors.New("queue capacity must not be negative")
	ErrInvalidRetryPolicy   = errors.New("invalid retry policy")
	ErrInvalidRateLimit     = errors.New("invalid rate limit")
	ErrHookTypeMismatch     = errors.New("hook type does not match pool types")
	ErrInvalidMetrics       = errors.New("invalid metrics registerer")
)

// Lifecycle errors.
var (
	ErrPoolAlreadyUsed = errors.New("pool already used")
	ErrPoolNotStarted  = errors.New("pool not started")
	ErrPoolStopped     = errors.New("pool has already been stopped")
	ErrShutdownTimeout = errors.New("error in shutting down: timeout reached")
)

// Key errors.
var (
	ErrUnknownKey   = errors.New("unknown key")
	ErrDuplicateKey = errors.New("key already submitted")
	ErrEmptyKey     = errors.New("key must not be empty")
)

// ErrTaskPanicked is wrapped by the error stored for a task whose function panicked.
var ErrTaskPanicked = errors.New("worker panic")

// TaskError reports the failure of one task inside a bulk operation.
type TaskError struct {
	Key Key
	// Index is the task's position in the input slice.
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (key %q): %v", e.Index, e.Key, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
