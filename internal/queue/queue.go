package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

var (
	ErrInvalidCapacity   = errors.New("queue capacity must be >= 0")
	ErrTaskDoneUnderflow = errors.New("TaskDone called more times than items were put")
)

// Queue is a FIFO shared by many producers and consumers.
//
// A capacity of zero means the queue grows without bound; otherwise Put
// blocks while the queue holds capacity items. Every item put also counts as
// unfinished until a consumer acknowledges it with TaskDone, and Join waits
// for that count to reach zero.
type Queue[E any] struct {
	mu         sync.Mutex
	items      deque.Deque[E]
	capacity   int
	unfinished int
	allDone    *sync.Cond

	// Buffered (size 1) wake-up tokens. They are never closed; a woken
	// goroutine that leaves work behind passes the token on.
	notEmpty chan struct{}
	notFull  chan struct{}
}

// New creates a queue. capacity 0 means unbounded.
func New[E any](capacity int) (*Queue[E], error) {
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}

	q := &Queue[E]{
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
	q.allDone = sync.NewCond(&q.mu)
	return q, nil
}

// Put appends e, blocking while a bounded queue is full.
// It returns ctx.Err() if ctx ends before space frees up; e is then not queued.
func (q *Queue[E]) Put(ctx context.Context, e E) error {
	for {
		q.mu.Lock()
		if q.hasRoom() {
			q.items.PushBack(e)
			q.unfinished++
			room := q.hasRoom()
			q.mu.Unlock()

			notify(q.notEmpty)
			if room {
				notify(q.notFull)
			}
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.notFull:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryPut appends e only if that does not require waiting.
func (q *Queue[E]) TryPut(e E) bool {
	q.mu.Lock()
	if !q.hasRoom() {
		q.mu.Unlock()
		return false
	}
	q.items.PushBack(e)
	q.unfinished++
	room := q.hasRoom()
	q.mu.Unlock()

	notify(q.notEmpty)
	if room {
		notify(q.notFull)
	}
	return true
}

// Get removes and returns the oldest item, blocking while the queue is empty.
func (q *Queue[E]) Get(ctx context.Context) (E, error) {
	for {
		if e, ok := q.TryGet(); ok {
			return e, nil
		}

		select {
		case <-q.notEmpty:
		case <-ctx.Done():
			var zero E
			return zero, ctx.Err()
		}
	}
}

// TryGet removes the oldest item if there is one.
func (q *Queue[E]) TryGet() (E, bool) {
	q.mu.Lock()
	if q.items.Len() == 0 {
		q.mu.Unlock()
		var zero E
		return zero, false
	}
	e := q.items.PopFront()
	more := q.items.Len() > 0
	q.mu.Unlock()

	notify(q.notFull)
	if more {
		notify(q.notEmpty)
	}
	return e, true
}

// TaskDone acknowledges one item previously returned by Get or TryGet.
func (q *Queue[E]) TaskDone() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		return ErrTaskDoneUnderflow
	}
	q.unfinished--
	if q.unfinished == 0 {
		q.allDone.Broadcast()
	}
	return nil
}

// Join blocks until every item ever put has been acknowledged.
func (q *Queue[E]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.unfinished > 0 {
		q.allDone.Wait()
	}
}

// Len is the number of items waiting to be taken.
func (q *Queue[E]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Unfinished is the number of items put but not yet acknowledged.
func (q *Queue[E]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Cap returns the configured capacity (0 = unbounded).
func (q *Queue[E]) Cap() int {
	return q.capacity
}

func (q *Queue[E]) hasRoom() bool {
	return q.capacity == 0 || q.items.Len() < q.capacity
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
