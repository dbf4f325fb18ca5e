package pool

import (
	"strconv"

	"github.com/utkarsh5026/keyedpool/internal/types"
)

// ProcessFunc is the function a WorkPool applies to each submitted task.
// ctx is the pool's lifetime context, derived from the one given to Start.
//
// Type parameters:
//   - T: The type of input task to be processed
//   - R: The type of result produced after processing
type ProcessFunc[T any, R any] = types.ProcessFunc[T, R]

// Result is the tagged outcome of one task: Value is only meaningful when
// Error is nil.
type Result[R any] = types.Result[R, Key]

// Key identifies one submission for the lifetime of a pool.
type Key string

// IndexKey is the key bulk operations give to the task at position i.
func IndexKey(i int) Key {
	return Key(strconv.Itoa(i))
}

// State is a pool's lifecycle stage. It only ever moves forward.
type State int32

const (
	// StateCreated pools accept submissions but run nothing yet.
	StateCreated State = iota
	// StateStarted pools have running workers.
	StateStarted
	// StateStopping pools reject submissions and are draining their queue.
	StateStopping
	// StateStopped pools have no workers left and are unusable.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Stats is a point-in-time snapshot of a pool's counters.
type Stats struct {
	State     State
	Workers   int
	Submitted int64
	Completed int64
	Failed    int64
	// Pending counts submitted tasks whose result is not stored yet.
	Pending int64
	// Queued counts messages waiting for a worker.
	Queued int
}
