package pool

import (
	"context"
	"testing"
	"time"
)

// queueConfig defines a test configuration for a queue layout
type queueConfig struct {
	name string
	opts []Option
}

// getAllQueues returns the queue layouts every behavioural test runs against.
// A capacity of 1 forces Put to block on almost every submission.
func getAllQueues(workerCount int) []queueConfig {
	return []queueConfig{
		{
			name: "Unbounded",
			opts: []Option{WithWorkerCount(workerCount)},
		},
		{
			name: "BoundedOne",
			opts: []Option{WithWorkerCount(workerCount), WithQueueCapacity(1)},
		},
		{
			name: "Bounded",
			opts: []Option{WithWorkerCount(workerCount), WithQueueCapacity(64)},
		},
	}
}

func runQueueTest(t *testing.T, testFunc func(t *testing.T, q queueConfig), workerCount int, additionalOpts ...Option) {
	t.Helper()
	for _, q := range getAllQueues(workerCount) {
		q.opts = append(q.opts, additionalOpts...)
		t.Run(q.name, func(t *testing.T) {
			testFunc(t, q)
		})
	}
}

func square(_ context.Context, n int) (int, error) {
	return n * n, nil
}

// mustNew builds a pool or fails the test.
func mustNew[T any, R any](t *testing.T, fn ProcessFunc[T, R], opts ...Option) *WorkPool[T, R] {
	t.Helper()
	p, err := New(fn, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// mustStart starts p and registers a shutdown for the end of the test.
func mustStart[T any, R any](t *testing.T, p *WorkPool[T, R]) {
	t.Helper()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		_ = p.Shutdown(5 * time.Second)
	})
}
