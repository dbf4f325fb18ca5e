// Package pool provides a keyed, single-use worker pool.
//
// The primary type is WorkPool[T, R]: a fixed set of workers that apply one
// function to every task of type T put on a shared queue. Each submission is
// identified by a Key, and the result of type R is stored under that key until
// the caller retrieves it. Workers are isolated from task faults: an error or
// a panic in the function is recorded as that task's result and never leaves
// a waiter blocked.
//
// # Basic Usage
//
//	p, err := pool.New(func(ctx context.Context, x int) (int, error) {
//	    return x + 1, nil
//	}, pool.WithWorkerCount(4))
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	key, _ := p.Put(10)
//	v, ready, err := p.GetWithTimeout(key, 5*time.Second) // 11, true, nil
//	_ = p.Shutdown(0)
//
// # Bulk Processing
//
// Map, MapResults and Apply run a whole slice through the pool and shut it
// down afterwards. Map returns results in input order:
//
//	squares, err := p.Map(ctx, []int{1, 2, 3, 4, 5}) // [1 4 9 16 25]
//
// # Lifecycle
//
// A pool moves through Created, Started, Stopping and Stopped exactly once.
// Tasks may be put before Start and wait in the queue. Shutdown stops new
// submissions, lets the workers finish everything already queued, and then
// waits for them to exit. A stopped pool cannot be restarted; create a new one.
//
// # Retry Logic
//
// Tasks can be retried with backoff on failure:
//
//	p, _ := pool.New(callAPI,
//	    pool.WithRetryPolicy(3, 100*time.Millisecond), // 3 attempts, 100ms initial delay
//	    pool.WithBackoff(pool.BackoffJittered, 100*time.Millisecond, 2*time.Second, 0.2),
//	)
//
// # Configuration Options
//
//   - WithWorkerCount(n): Number of concurrent workers (default: GOMAXPROCS)
//   - WithQueueCapacity(n): Bound the queue so Put blocks when full (default: unbounded)
//   - WithRetryPolicy(attempts, delay): Retry failed tasks
//   - WithBackoff(type, initial, max, jitter): Retry delay algorithm
//   - WithRateLimit(tasksPerSec, burst): Throttle task starts across all workers
//   - WithBeforeTaskStart, WithOnTaskEnd, WithOnRetry: Task hooks
//   - WithKeyGenerator(fn): Replace the random UUID keys used by Put
//   - WithLogger(logger): Structured lifecycle and failure logs
//   - WithMetrics(registerer): Prometheus metrics
//   - WithCPUAffinity(): Pin each worker to a CPU core
//
// All methods of WorkPool are safe for concurrent use.
package pool
