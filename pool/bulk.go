package pool

import (
	"context"
	"errors"
	"fmt"
)

// Map applies the pool function to every task and returns the results in
// input order. It starts the pool if needed, submits task i under IndexKey(i),
// shuts the pool down and gathers the results by index, so the pool cannot be
// used again afterwards.
//
// The returned slice always has len(tasks) entries. A failed task leaves the
// zero value in its slot and contributes a *TaskError to the joined error.
//
// Example:
//
//	p, _ := pool.New(square, pool.WithWorkerCount(2))
//	squares, err := p.Map(ctx, []int{1, 2, 3, 4, 5})
//	// squares: [1 4 9 16 25]
func (p *WorkPool[T, R]) Map(ctx context.Context, tasks []T) ([]R, error) {
	results, err := p.MapResults(ctx, tasks)
	if err != nil {
		return nil, err
	}

	out := make([]R, len(results))
	var errs []error
	for i, r := range results {
		if r.Failed() {
			errs = append(errs, &TaskError{Key: r.Key, Index: i, Err: r.Error})
			continue
		}
		out[i] = r.Value
	}
	return out, errors.Join(errs...)
}

// MapResults is Map returning the tagged result of every task instead of
// folding failures into one error. The error is only non-nil when the batch
// could not be run at all.
func (p *WorkPool[T, R]) MapResults(ctx context.Context, tasks []T) ([]Result[R], error) {
	keys := make([]Key, len(tasks))
	for i := range tasks {
		keys[i] = IndexKey(i)
	}

	if err := p.runBatch(ctx, keys, tasks); err != nil {
		return nil, err
	}
	return p.collect(ctx, keys)
}

// Apply runs the pool function over tasks for their side effects only. Tasks
// get generated keys. The returned error joins a *TaskError per failed task.
func (p *WorkPool[T, R]) Apply(ctx context.Context, tasks []T) error {
	keys := make([]Key, len(tasks))
	for i := range tasks {
		keys[i] = p.settings.keyGen()
	}

	if err := p.runBatch(ctx, keys, tasks); err != nil {
		return err
	}

	results, err := p.collect(ctx, keys)
	if err != nil {
		return err
	}

	var errs []error
	for i, r := range results {
		if r.Failed() {
			errs = append(errs, &TaskError{Key: r.Key, Index: i, Err: r.Error})
		}
	}
	return errors.Join(errs...)
}

// Collect waits for each of keys in turn and returns their tagged results in
// the same order. Task failures are reported in the results; the error is
// non-nil for an unknown key or when ctx ends first.
func (p *WorkPool[T, R]) Collect(ctx context.Context, keys ...Key) ([]Result[R], error) {
	return p.collect(ctx, keys)
}

func (p *WorkPool[T, R]) collect(ctx context.Context, keys []Key) ([]Result[R], error) {
	results := make([]Result[R], len(keys))
	for i, key := range keys {
		f, err := p.table.lookup(key)
		if err != nil {
			return nil, err
		}

		if !f.IsReady() {
			select {
			case <-f.Done():
			case <-ctx.Done():
				return nil, fmt.Errorf("collecting %q: %w", key, ctx.Err())
			}
		}
		results[i] = f.Result()
	}
	return results, nil
}

// runBatch starts the pool if it has not been started, submits every task
// and then shuts the pool down. The pool is shut down even when a submission
// fails, so no worker outlives the batch.
func (p *WorkPool[T, R]) runBatch(ctx context.Context, keys []Key, tasks []T) error {
	if err := p.ensureStarted(ctx); err != nil {
		return err
	}

	var submitErr error
	for i, task := range tasks {
		if err := p.PutContext(ctx, keys[i], task); err != nil {
			submitErr = fmt.Errorf("submitting task %d: %w", i, err)
			break
		}
	}

	shutdownErr := p.Shutdown(0)
	if errors.Is(shutdownErr, ErrPoolStopped) {
		// Someone else began the shutdown; the drain still finishes our tasks.
		<-p.done
		shutdownErr = nil
	}
	return errors.Join(submitErr, shutdownErr)
}

func (p *WorkPool[T, R]) ensureStarted(ctx context.Context) error {
	if p.State() != StateCreated {
		return nil
	}
	if err := p.Start(ctx); err != nil && !errors.Is(err, ErrPoolAlreadyUsed) {
		return err
	}
	return nil
}
