package types

import (
	"context"
	"sync"
	"time"
)

// Future is a one-shot handle to the result of a submitted task.
//
// A future moves from pending to complete exactly once. Completion stores the
// result and then closes the done channel, so every goroutine blocked in Get,
// GetWithContext or on Done is released and observes the stored result.
type Future[R any, K comparable] struct {
	done   chan struct{}
	once   sync.Once
	result Result[R, K]
}

// NewFuture returns a pending future.
func NewFuture[R any, K comparable]() *Future[R, K] {
	return &Future[R, K]{done: make(chan struct{})}
}

// Complete stores r and releases all waiters. Only the first call has any
// effect; it reports whether this call was the one that completed the future.
func (f *Future[R, K]) Complete(r Result[R, K]) bool {
	completed := false
	f.once.Do(func() {
		f.result = r
		close(f.done)
		completed = true
	})
	return completed
}

// Get blocks until the result is available.
func (f *Future[R, K]) Get() (R, K, error) {
	<-f.done
	return f.result.Value, f.result.Key, f.result.Error
}

// GetWithContext blocks until the result is available or ctx is done.
// A completed future always wins over a cancelled context.
func (f *Future[R, K]) GetWithContext(ctx context.Context) (R, K, error) {
	if f.IsReady() {
		return f.Get()
	}

	select {
	case <-f.done:
		return f.Get()
	case <-ctx.Done():
		var (
			zero R
			key  K
		)
		return zero, key, ctx.Err()
	}
}

// GetWithTimeout waits at most timeout for the result. ready is false when
// the future is still pending; a non-positive timeout only polls.
func (f *Future[R, K]) GetWithTimeout(timeout time.Duration) (value R, key K, err error, ready bool) {
	if timeout <= 0 {
		return f.TryGet()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		value, key, err = f.Get()
		return value, key, err, true
	case <-timer.C:
		return f.TryGet()
	}
}

// TryGet returns the result without blocking.
func (f *Future[R, K]) TryGet() (value R, key K, err error, ready bool) {
	select {
	case <-f.done:
		value, key, err = f.Get()
		return value, key, err, true
	default:
		return value, key, nil, false
	}
}

// Result returns the full tagged result, blocking until it exists.
func (f *Future[R, K]) Result() Result[R, K] {
	<-f.done
	return f.result
}

// Done returns a channel closed on completion, for use in select.
func (f *Future[R, K]) Done() <-chan struct{} {
	return f.done
}

// IsReady reports whether the future has completed.
func (f *Future[R, K]) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
