package types

import (
	"context"
	"time"
)

// ProcessFunc is the transformation a pool applies to every submitted task.
type ProcessFunc[T any, R any] func(ctx context.Context, task T) (R, error)

// Result is the tagged outcome of one task: Error is nil on success.
type Result[R any, K comparable] struct {
	Value R
	Error error
	Key   K
}

// NewResult builds a Result for key.
func NewResult[R any, K comparable](value R, key K, err error) Result[R, K] {
	return Result[R, K]{Value: value, Key: key, Error: err}
}

// Failed reports whether the task ended with an error.
func (r Result[R, K]) Failed() bool {
	return r.Error != nil
}

// SubmittedTask is a unit of work owned by the queue until a worker claims it.
type SubmittedTask[T any, R any, K comparable] struct {
	Task     T
	Key      K
	Future   *Future[R, K]
	Enqueued time.Time
}

// NewSubmittedTask pairs a payload with the future that will receive its result.
func NewSubmittedTask[T any, R any, K comparable](task T, key K, future *Future[R, K]) *SubmittedTask[T, R, K] {
	return &SubmittedTask[T, R, K]{
		Task:     task,
		Key:      key,
		Future:   future,
		Enqueued: time.Now(),
	}
}

// MessageKind tags what a queue message asks of the worker that receives it.
type MessageKind uint8

const (
	// MessageWork carries a task to process.
	MessageWork MessageKind = iota
	// MessageShutdown tells exactly one worker to exit.
	MessageShutdown
)

func (k MessageKind) String() string {
	switch k {
	case MessageWork:
		return "work"
	case MessageShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Message is the only value that travels through a pool's queue.
// Shutdown messages have a nil Task and no key, so they can never be
// confused with a real submission.
type Message[T any, R any, K comparable] struct {
	Kind MessageKind
	Task *SubmittedTask[T, R, K]
}

// WorkMessage wraps a submitted task.
func WorkMessage[T any, R any, K comparable](task *SubmittedTask[T, R, K]) Message[T, R, K] {
	return Message[T, R, K]{Kind: MessageWork, Task: task}
}

// ShutdownMessage builds the per-worker stop message.
func ShutdownMessage[T any, R any, K comparable]() Message[T, R, K] {
	return Message[T, R, K]{Kind: MessageShutdown}
}
