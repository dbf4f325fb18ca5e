package benchmarks

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/utkarsh5026/keyedpool/pool"
)

// queueConfig defines a benchmark configuration for a queue layout
type queueConfig struct {
	name string
	opts []pool.Option
}

// getAllQueues returns the queue layouts to benchmark
func getAllQueues(workerCount, taskCount int) []queueConfig {
	return []queueConfig{
		{
			name: "Unbounded",
			opts: []pool.Option{pool.WithWorkerCount(workerCount)},
		},
		{
			name: "Bounded_Workers",
			opts: []pool.Option{pool.WithWorkerCount(workerCount), pool.WithQueueCapacity(workerCount)},
		},
		{
			name: "Bounded_Tasks",
			opts: []pool.Option{pool.WithWorkerCount(workerCount), pool.WithQueueCapacity(taskCount)},
		},
	}
}

// runQueueBenchmark runs a benchmark function for every queue layout
func runQueueBenchmark(b *testing.B, queues []queueConfig, benchFunc func(b *testing.B, q queueConfig)) {
	for _, q := range queues {
		b.Run(q.name, func(b *testing.B) {
			benchFunc(b, q)
		})
	}
}

func makeTasks(n int) []int {
	tasks := make([]int, n)
	for i := range tasks {
		tasks[i] = i
	}
	return tasks
}

// mapOnce runs one Map on a fresh pool, since pools are single use.
func mapOnce(b *testing.B, fn pool.ProcessFunc[int, int], tasks []int, opts ...pool.Option) {
	b.Helper()
	p, err := pool.New(fn, opts...)
	if err != nil {
		b.Fatal(err)
	}
	if _, err := p.Map(context.Background(), tasks); err != nil {
		b.Fatal(err)
	}
}

func reportThroughput(b *testing.B, taskCount int) float64 {
	nsPerOp := float64(b.Elapsed().Nanoseconds()) / float64(b.N)
	tasksPerSec := float64(taskCount) / nsPerOp * 1e9
	b.ReportMetric(tasksPerSec, "tasks/sec")
	return tasksPerSec
}

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations int) pool.ProcessFunc[int, int] {
	return func(ctx context.Context, task int) (int, error) {
		result := 0
		for i := range iterations {
			result += i * task
		}
		return result, nil
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) pool.ProcessFunc[int, int] {
	return func(ctx context.Context, task int) (int, error) {
		select {
		case <-time.After(delay):
			return task * 2, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)
	return sorted[min(int(float64(len(sorted))*p), len(sorted)-1)]
}
