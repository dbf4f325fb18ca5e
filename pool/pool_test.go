package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	t.Run("nil process function", func(t *testing.T) {
		if _, err := New[int, int](nil); !errors.Is(err, ErrNilProcessFunc) {
			t.Errorf("expected ErrNilProcessFunc, got %v", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		p := mustNew(t, square)
		if p.WorkerCount() < 1 {
			t.Errorf("expected at least one worker, got %d", p.WorkerCount())
		}
		if p.QueueCapacity() != 0 {
			t.Errorf("expected unbounded queue, got capacity %d", p.QueueCapacity())
		}
		if p.State() != StateCreated {
			t.Errorf("expected %v, got %v", StateCreated, p.State())
		}
	})

	t.Run("func accessor", func(t *testing.T) {
		p := mustNew(t, square)
		v, err := p.Func()(context.Background(), 6)
		if err != nil || v != 36 {
			t.Errorf("expected the configured function, got %d, %v", v, err)
		}
	})
}

func TestWorkPool_Map_Squares(t *testing.T) {
	p := mustNew(t, square, WithWorkerCount(4))

	got, err := p.Map(context.Background(), []int{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if diff := cmp.Diff([]int{1, 4, 9, 16, 25}, got); diff != "" {
		t.Errorf("Map mismatch (-want +got):\n%s", diff)
	}
	if p.State() != StateStopped {
		t.Errorf("expected %v after map, got %v", StateStopped, p.State())
	}
}

func TestWorkPool_Map_MatchesFunction(t *testing.T) {
	double := func(ctx context.Context, s string) (string, error) {
		// Uneven task durations shuffle completion order.
		time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
		return s + s, nil
	}

	tasks := make([]string, 100)
	want := make([]string, len(tasks))
	for i := range tasks {
		tasks[i] = fmt.Sprintf("t%d", i)
		want[i] = tasks[i] + tasks[i]
	}

	for _, workers := range []int{1, 2, 3, 8, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			runQueueTest(t, func(t *testing.T, q queueConfig) {
				p := mustNew(t, double, q.opts...)
				got, err := p.Map(context.Background(), tasks)
				if err != nil {
					t.Fatalf("map: %v", err)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("Map mismatch (-want +got):\n%s", diff)
				}
			}, workers)
		})
	}
}

func TestWorkPool_Map_IndependentOfWorkerCount(t *testing.T) {
	tasks := make([]int, 1000)
	for i := range tasks {
		tasks[i] = i
	}
	fn := func(ctx context.Context, n int) (string, error) {
		return fmt.Sprintf("%d:%d", n, n*7%13), nil
	}

	one, err := mustNew(t, fn, WithWorkerCount(1)).Map(context.Background(), tasks)
	if err != nil {
		t.Fatalf("map with 1 worker: %v", err)
	}
	eight, err := mustNew(t, fn, WithWorkerCount(8)).Map(context.Background(), tasks)
	if err != nil {
		t.Fatalf("map with 8 workers: %v", err)
	}

	if len(one) != len(tasks) {
		t.Fatalf("expected %d results, got %d", len(tasks), len(one))
	}
	if diff := cmp.Diff(one, eight); diff != "" {
		t.Errorf("results depend on worker count (-1 worker +8 workers):\n%s", diff)
	}
}

func TestWorkPool_Map_EmptyTasks(t *testing.T) {
	p := mustNew(t, square, WithWorkerCount(2))

	got, err := p.Map(context.Background(), nil)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
	if p.State() != StateStopped {
		t.Errorf("expected %v, got %v", StateStopped, p.State())
	}
}

func TestWorkPool_Map_SingleUse(t *testing.T) {
	p := mustNew(t, square, WithWorkerCount(2))
	if _, err := p.Map(context.Background(), []int{1}); err != nil {
		t.Fatalf("first map: %v", err)
	}

	if _, err := p.Map(context.Background(), []int{2}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped from second map, got %v", err)
	}
	if _, err := p.Put(3); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped from put, got %v", err)
	}
}

func TestWorkPool_Map_AfterStart(t *testing.T) {
	p := mustNew(t, square, WithWorkerCount(2))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, err := p.Map(context.Background(), []int{3, 4})
	if err != nil {
		t.Fatalf("map on started pool: %v", err)
	}
	if diff := cmp.Diff([]int{9, 16}, got); diff != "" {
		t.Errorf("Map mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkPool_PutGetScenario(t *testing.T) {
	p := mustNew(t, func(ctx context.Context, x int) (int, error) {
		return x + 1, nil
	}, WithWorkerCount(2))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	k, err := p.Put(10)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ready, err := p.GetWithTimeout(k, 5*time.Second)
	if err != nil || !ready {
		t.Fatalf("get: ready=%v err=%v", ready, err)
	}
	if v != 11 {
		t.Errorf("expected 11, got %d", v)
	}

	if err := p.Shutdown(0); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := p.Put(1); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
}

func TestWorkPool_FaultIsolation(t *testing.T) {
	errBad := errors.New("bad item")
	fn := func(ctx context.Context, n int) (int, error) {
		if n == 3 {
			return 0, errBad
		}
		return n * 10, nil
	}

	t.Run("put and collect", func(t *testing.T) {
		runQueueTest(t, func(t *testing.T, q queueConfig) {
			p := mustNew(t, fn, q.opts...)
			mustStart(t, p)

			keys := make([]Key, 5)
			for i := range keys {
				key, err := p.Put(i + 1)
				if err != nil {
					t.Fatalf("put: %v", err)
				}
				keys[i] = key
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			results, err := p.Collect(ctx, keys...)
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			if len(results) != 5 {
				t.Fatalf("expected 5 results, got %d", len(results))
			}

			for i, r := range results {
				if r.Key != keys[i] {
					t.Errorf("result %d: expected key %s, got %s", i, keys[i], r.Key)
				}
				if i == 2 {
					if !errors.Is(r.Error, errBad) {
						t.Errorf("result %d: expected errBad, got %v", i, r.Error)
					}
					continue
				}
				if r.Failed() || r.Value != (i+1)*10 {
					t.Errorf("result %d: expected %d, got %d, %v", i, (i+1)*10, r.Value, r.Error)
				}
			}
		}, 2)
	})

	t.Run("map reports task errors", func(t *testing.T) {
		p := mustNew(t, fn, WithWorkerCount(3))

		got, err := p.Map(context.Background(), []int{1, 2, 3, 4, 5})
		if diff := cmp.Diff([]int{10, 20, 0, 40, 50}, got); diff != "" {
			t.Errorf("Map mismatch (-want +got):\n%s", diff)
		}

		var taskErr *TaskError
		if !errors.As(err, &taskErr) {
			t.Fatalf("expected *TaskError, got %v", err)
		}
		if taskErr.Index != 2 || taskErr.Key != IndexKey(2) {
			t.Errorf("expected failure at index 2, got index %d key %q", taskErr.Index, taskErr.Key)
		}
		if !errors.Is(err, errBad) {
			t.Errorf("expected error chain to contain errBad, got %v", err)
		}
	})

	t.Run("map results are tagged", func(t *testing.T) {
		p := mustNew(t, fn, WithWorkerCount(3))

		results, err := p.MapResults(context.Background(), []int{1, 2, 3, 4, 5})
		if err != nil {
			t.Fatalf("map results: %v", err)
		}
		if len(results) != 5 {
			t.Fatalf("expected 5 results, got %d", len(results))
		}

		var failed int
		for _, r := range results {
			if r.Failed() {
				failed++
			}
		}
		if failed != 1 || !results[2].Failed() {
			t.Errorf("expected only result 2 to fail, got %+v", results)
		}
	})
}

func TestWorkPool_PanicRecovery(t *testing.T) {
	runQueueTest(t, func(t *testing.T, q queueConfig) {
		p := mustNew(t, func(ctx context.Context, n int) (int, error) {
			if n == 2 {
				panic("test panic")
			}
			return n, nil
		}, q.opts...)

		results, err := p.MapResults(context.Background(), []int{1, 2, 3})
		if err != nil {
			t.Fatalf("map results: %v", err)
		}

		if !errors.Is(results[1].Error, ErrTaskPanicked) {
			t.Fatalf("expected ErrTaskPanicked, got %v", results[1].Error)
		}
		msg := results[1].Error.Error()
		if !strings.Contains(msg, "test panic") || !strings.Contains(msg, "stack trace") {
			t.Errorf("panic error should carry the value and a stack trace, got %q", msg)
		}
		if results[0].Value != 1 || results[2].Value != 3 {
			t.Errorf("other tasks should be unaffected, got %+v", results)
		}
	}, 2)
}

func TestWorkPool_Apply(t *testing.T) {
	t.Run("runs every task", func(t *testing.T) {
		var sum atomic.Int64
		p := mustNew(t, func(ctx context.Context, n int) (struct{}, error) {
			sum.Add(int64(n))
			return struct{}{}, nil
		}, WithWorkerCount(4))

		tasks := make([]int, 100)
		for i := range tasks {
			tasks[i] = i + 1
		}

		if err := p.Apply(context.Background(), tasks); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if got := sum.Load(); got != 5050 {
			t.Errorf("expected 5050, got %d", got)
		}
		if p.State() != StateStopped {
			t.Errorf("expected %v, got %v", StateStopped, p.State())
		}
	})

	t.Run("joins task errors", func(t *testing.T) {
		p := mustNew(t, func(ctx context.Context, n int) (int, error) {
			if n%2 == 0 {
				return 0, fmt.Errorf("even %d", n)
			}
			return n, nil
		}, WithWorkerCount(2))

		err := p.Apply(context.Background(), []int{1, 2, 3, 4})
		if err == nil {
			t.Fatal("expected an error")
		}

		var joined interface{ Unwrap() []error }
		if !errors.As(err, &joined) {
			t.Fatalf("expected a joined error, got %T", err)
		}
		if n := len(joined.Unwrap()); n != 2 {
			t.Errorf("expected 2 task errors, got %d: %v", n, err)
		}
	})
}

func TestWorkPool_Collect_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	p := mustNew(t, func(ctx context.Context, n int) (int, error) {
		<-release
		return n, nil
	}, WithWorkerCount(1))
	key, _ := p.Put(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Collect(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if _, err := p.Collect(context.Background(), "missing"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
}

func TestWorkPool_Stats(t *testing.T) {
	p := mustNew(t, func(ctx context.Context, n int) (int, error) {
		if n < 0 {
			return 0, errors.New("negative")
		}
		return n, nil
	}, WithWorkerCount(2))

	_, _ = p.Map(context.Background(), []int{1, -1, 2, -2, 3})

	want := Stats{
		State:     StateStopped,
		Workers:   2,
		Submitted: 5,
		Completed: 5,
		Failed:    2,
		Pending:   0,
		Queued:    0,
	}
	if diff := cmp.Diff(want, p.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestTaskError(t *testing.T) {
	cause := errors.New("cause")
	err := &TaskError{Key: "7", Index: 7, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("TaskError should unwrap to its cause")
	}
	if got, want := err.Error(), `task 7 (key "7"): cause`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIndexKey(t *testing.T) {
	if got := IndexKey(42); got != "42" {
		t.Errorf("IndexKey(42) = %q, want %q", got, "42")
	}
}
