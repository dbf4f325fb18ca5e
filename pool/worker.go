package pool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/utkarsh5026/keyedpool/internal/cpu"
	"github.com/utkarsh5026/keyedpool/internal/types"
)

// worker drains the queue until it receives a shutdown message. Every work
// message is marked done on the queue, whatever the task's outcome, so that
// Shutdown's join cannot hang on a failed task.
func (p *WorkPool[T, R]) worker(id int) error {
	if p.settings.cpuAffinity {
		release, err := cpu.Pin(id)
		defer release()
		if err != nil {
			p.settings.logger.Warn("cpu pinning failed", "worker", id, "error", err)
		}
	}

	p.settings.recorder.WorkersRunning(1)
	defer p.settings.recorder.WorkersRunning(-1)

	for {
		// The queue is only abandoned through shutdown messages, never a context.
		msg, err := p.queue.Get(context.Background())
		if err != nil {
			return err
		}

		if msg.Kind == types.MessageShutdown {
			return p.queue.TaskDone()
		}

		p.execute(msg.Task)
		if err := p.queue.TaskDone(); err != nil {
			return err
		}
	}
}

// execute runs one submitted task and always completes its future.
func (p *WorkPool[T, R]) execute(st *types.SubmittedTask[T, R, Key]) {
	rec := p.settings.recorder
	started := time.Now()
	rec.Started(started.Sub(st.Enqueued))
	rec.QueueDepth(p.queue.Len())

	value, err := p.executeTask(st.Task)

	rec.Finished(time.Since(started), err)
	if err != nil {
		p.settings.logger.Warn("task failed", "key", st.Key, "error", err)
	}

	p.table.complete(st.Future, types.NewResult(value, st.Key, err))
}

func (p *WorkPool[T, R]) executeTask(task T) (result R, err error) {
	if p.settings.limiter != nil {
		if err := p.settings.limiter.Wait(p.ctx); err != nil {
			return result, err
		}
	}

	if p.settings.beforeTaskStart != nil {
		p.runHook("before_task_start", func() { p.settings.beforeTaskStart(task) })
	}

	result, err = p.processWithRetry(task)

	if p.settings.onTaskEnd != nil {
		p.runHook("on_task_end", func() { p.settings.onTaskEnd(task, result, err) })
	}
	return result, err
}

// processWithRetry applies the pool function up to maxAttempts times, backing
// off between attempts. A cancelled pool context ends the loop before the
// next attempt, so queued tasks still complete with ctx.Err().
func (p *WorkPool[T, R]) processWithRetry(task T) (result R, err error) {
	var delay time.Duration

	for attempt := range p.settings.maxAttempts {
		if attempt > 0 {
			delay = p.settings.backoff.Delay(attempt-1, delay)
			if err := sleep(p.ctx, delay); err != nil {
				return result, err
			}
		}

		if err := p.ctx.Err(); err != nil {
			return result, err
		}

		result, err = p.processWithRecovery(task)
		if err == nil {
			return result, nil
		}

		if attempt < p.settings.maxAttempts-1 {
			p.settings.recorder.Retried()
			p.settings.logger.Debug("retrying task", "attempt", attempt+1, "error", err)
			if p.settings.onRetry != nil {
				p.runHook("on_retry", func() { p.settings.onRetry(task, attempt+1, err) })
			}
		}
	}
	return result, err
}

// processWithRecovery executes a task with panic recovery.
// If a panic occurs, it's converted to an error to prevent crashing the worker.
func (p *WorkPool[T, R]) processWithRecovery(task T) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("%w: %v\nstack trace:\n%s", ErrTaskPanicked, r, buf[:n])
		}
	}()

	return p.fn(p.ctx, task)
}

// runHook calls a user hook, logging instead of propagating a panic so the
// task's future is still completed.
func (p *WorkPool[T, R]) runHook(name string, hook func()) {
	defer func() {
		if r := recover(); r != nil {
			p.settings.logger.Error("hook panicked", "hook", name, "panic", r)
		}
	}()
	hook()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
