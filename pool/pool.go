package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/keyedpool/internal/queue"
	"github.com/utkarsh5026/keyedpool/internal/types"
)

type message[T any, R any] = types.Message[T, R, Key]

// WorkPool applies one function to a stream of submitted tasks using a fixed
// set of worker goroutines, and hands out a key per submission so the caller
// can later wait for that task's result.
//
// A WorkPool is single use: it is started once, shut down once, and cannot
// accept work afterwards.
//
// Type parameters:
//   - T: The input task type
//   - R: The result type
type WorkPool[T any, R any] struct {
	fn       ProcessFunc[T, R]
	settings *settings[T, R]
	queue    *queue.Queue[message[T, R]]
	table    *resultTable[R]

	// mu orders state transitions against the admission of new submissions.
	mu      sync.RWMutex
	state   atomic.Int32
	submits sync.WaitGroup

	workers errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc

	submitted atomic.Int64
	done      chan struct{} // closed once the pool is stopped
}

// New creates an unstarted pool that will apply fn to every task.
// No goroutines run until Start (or a bulk operation) is called.
//
// Default configuration:
//   - workerCount: runtime.GOMAXPROCS(0)
//   - queueCapacity: 0 (unbounded)
//   - maxAttempts: 1 (no retries)
//   - keys: random UUIDs
//
// Example:
//
//	p, err := pool.New(func(ctx context.Context, n int) (int, error) {
//	    return n * n, nil
//	}, pool.WithWorkerCount(4))
func New[T any, R any](fn ProcessFunc[T, R], opts ...Option) (*WorkPool[T, R], error) {
	if fn == nil {
		return nil, ErrNilProcessFunc
	}

	s, err := newSettings[T, R](opts...)
	if err != nil {
		return nil, err
	}

	q, err := queue.New[message[T, R]](s.queueCapacity)
	if err != nil {
		return nil, err
	}

	p := &WorkPool[T, R]{
		fn:       fn,
		settings: s,
		queue:    q,
		table:    newResultTable[R](),
		done:     make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	return p, nil
}

// Start launches the workers. ctx bounds the pool's lifetime and is the
// context handed to the process function.
//
// Returns:
//   - error: ErrPoolAlreadyUsed if Start was already called, or the pool was
//     started implicitly by Map or Apply
func (p *WorkPool[T, R]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.CompareAndSwap(int32(StateCreated), int32(StateStarted)) {
		return ErrPoolAlreadyUsed
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := range p.settings.workerCount {
		p.workers.Go(func() error {
			return p.worker(i)
		})
	}

	p.settings.logger.Info("pool started",
		"workers", p.settings.workerCount,
		"queue_capacity", p.settings.queueCapacity,
		"queued", p.queue.Len(),
	)
	return nil
}

// Put submits task under a freshly generated key and returns that key
// without waiting for the task to run. It blocks only while a bounded queue
// is full.
//
// Put is allowed before Start; such tasks wait in the queue until workers
// exist. It fails with ErrPoolStopped once Shutdown has begun.
func (p *WorkPool[T, R]) Put(task T) (Key, error) {
	key := p.settings.keyGen()
	if err := p.PutContext(context.Background(), key, task); err != nil {
		return "", err
	}
	return key, nil
}

// PutWithKey submits task under a caller-chosen key.
func (p *WorkPool[T, R]) PutWithKey(key Key, task T) error {
	return p.PutContext(context.Background(), key, task)
}

// PutContext submits task under key, giving up with ctx.Err() if ctx ends
// while waiting for room in a bounded queue. An abandoned key is forgotten
// and may be submitted again.
func (p *WorkPool[T, R]) PutContext(ctx context.Context, key Key, task T) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := p.admit(); err != nil {
		return err
	}
	defer p.submits.Done()

	future, err := p.table.register(key)
	if err != nil {
		return err
	}

	msg := types.WorkMessage(types.NewSubmittedTask(task, key, future))
	if err := p.queue.Put(ctx, msg); err != nil {
		p.table.unregister(key)
		return err
	}

	p.submitted.Add(1)
	p.settings.recorder.Submitted()
	return nil
}

// admit registers an in-flight submission unless the pool is shutting down.
// Shutdown waits for admitted submissions before it queues the stop messages,
// so no task can land behind them.
func (p *WorkPool[T, R]) admit() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if s := p.State(); s == StateStopping || s == StateStopped {
		return ErrPoolStopped
	}
	p.submits.Add(1)
	return nil
}

// Get blocks until the task submitted under key has finished and returns its
// result, or the error the task ended with.
func (p *WorkPool[T, R]) Get(key Key) (R, error) {
	f, err := p.table.lookup(key)
	if err != nil {
		var zero R
		return zero, err
	}
	value, _, err := f.Get()
	return value, err
}

// GetWithTimeout waits at most timeout for key's result. ready is false if
// the task is still pending, which is distinct from a finished task whose
// result happens to be the zero value. A non-positive timeout does not wait.
func (p *WorkPool[T, R]) GetWithTimeout(key Key, timeout time.Duration) (value R, ready bool, err error) {
	f, err := p.table.lookup(key)
	if err != nil {
		return value, false, err
	}
	value, _, err, ready = f.GetWithTimeout(timeout)
	return value, ready, err
}

// GetWithContext waits for key's result until ctx ends.
func (p *WorkPool[T, R]) GetWithContext(ctx context.Context, key Key) (R, error) {
	f, err := p.table.lookup(key)
	if err != nil {
		var zero R
		return zero, err
	}
	value, _, err := f.GetWithContext(ctx)
	return value, err
}

// TryGet returns key's result if it is ready, without blocking.
func (p *WorkPool[T, R]) TryGet(key Key) (value R, ready bool, err error) {
	return p.GetWithTimeout(key, 0)
}

// Done returns a channel that is closed when key's task has finished.
func (p *WorkPool[T, R]) Done(key Key) (<-chan struct{}, error) {
	f, err := p.table.lookup(key)
	if err != nil {
		return nil, err
	}
	return f.Done(), nil
}

// Shutdown stops accepting work, lets the workers finish everything already
// queued, and waits for them to exit.
//
// Parameters:
//   - timeout: Maximum duration to wait (0 = wait forever)
//
// Returns:
//   - error: ErrPoolNotStarted before Start, ErrPoolStopped on a second call,
//     ErrShutdownTimeout if the workers are still draining when the timeout
//     expires. The drain continues in the background and Terminated reports
//     when it ends.
func (p *WorkPool[T, R]) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	switch p.State() {
	case StateCreated:
		p.mu.Unlock()
		return ErrPoolNotStarted
	case StateStopping, StateStopped:
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.state.Store(int32(StateStopping))
	p.mu.Unlock()

	go p.drain()
	return waitUntil(p.done, timeout)
}

func (p *WorkPool[T, R]) drain() {
	p.submits.Wait()

	for range p.settings.workerCount {
		_ = p.queue.Put(context.Background(), types.ShutdownMessage[T, R, Key]())
	}

	err := p.workers.Wait()
	p.queue.Join()
	p.state.Store(int32(StateStopped))
	p.cancel()

	stats := p.Stats()
	if err != nil {
		p.settings.logger.Error("pool stopped with worker error", "error", err)
	}
	p.settings.logger.Info("pool stopped",
		"submitted", stats.Submitted,
		"completed", stats.Completed,
		"failed", stats.Failed,
	)
	close(p.done)
}

// Close shuts the pool down and waits for it without a timeout.
func (p *WorkPool[T, R]) Close() error {
	return p.Shutdown(0)
}

// Run starts the pool, calls body, and always shuts the pool down afterwards,
// even if body panics. The error from body wins over a shutdown error.
//
// Example:
//
//	err := p.Run(ctx, func(p *pool.WorkPool[int, int]) error {
//	    key, err := p.Put(10)
//	    if err != nil {
//	        return err
//	    }
//	    v, err := p.Get(key)
//	    fmt.Println(v)
//	    return err
//	})
func (p *WorkPool[T, R]) Run(ctx context.Context, body func(*WorkPool[T, R]) error) (err error) {
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if shutdownErr := p.Shutdown(0); err == nil {
			err = shutdownErr
		}
	}()
	return body(p)
}

// Terminated returns a channel closed once the pool has fully stopped.
func (p *WorkPool[T, R]) Terminated() <-chan struct{} {
	return p.done
}

// Func returns the function the pool applies.
func (p *WorkPool[T, R]) Func() ProcessFunc[T, R] {
	return p.fn
}

// WorkerCount returns the configured number of workers.
func (p *WorkPool[T, R]) WorkerCount() int {
	return p.settings.workerCount
}

// QueueCapacity returns the configured queue bound (0 = unbounded).
func (p *WorkPool[T, R]) QueueCapacity() int {
	return p.settings.queueCapacity
}

// State returns the pool's current lifecycle stage.
func (p *WorkPool[T, R]) State() State {
	return State(p.state.Load())
}

// Stats returns a snapshot of the pool's counters.
func (p *WorkPool[T, R]) Stats() Stats {
	_, completed, failed := p.table.counts()
	submitted := p.submitted.Load()
	return Stats{
		State:     p.State(),
		Workers:   p.settings.workerCount,
		Submitted: submitted,
		Completed: completed,
		Failed:    failed,
		Pending:   max(submitted-completed, 0),
		Queued:    p.queue.Len(),
	}
}
