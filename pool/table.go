package pool

import (
	"fmt"
	"sync"

	"github.com/utkarsh5026/keyedpool/internal/types"
)

// resultTable maps every submitted key to the future holding its result.
// Entries are never evicted: a pool lives for one batch of work, and its
// table goes away with it.
type resultTable[R any] struct {
	mu        sync.Mutex
	futures   map[Key]*types.Future[R, Key]
	completed int64
	failed    int64
}

func newResultTable[R any]() *resultTable[R] {
	return &resultTable[R]{
		futures: make(map[Key]*types.Future[R, Key]),
	}
}

// register creates the pending future for key.
func (t *resultTable[R]) register(key Key) (*types.Future[R, Key], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.futures[key]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	f := types.NewFuture[R, Key]()
	t.futures[key] = f
	return f, nil
}

// unregister forgets a key whose task never reached the queue.
func (t *resultTable[R]) unregister(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.futures, key)
}

func (t *resultTable[R]) lookup(key Key) (*types.Future[R, Key], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.futures[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return f, nil
}

// complete records r under the table lock and then releases the key's waiters.
// The future closes a channel on completion, which publishes r to every
// goroutine that observes the key as done.
func (t *resultTable[R]) complete(f *types.Future[R, Key], r Result[R]) {
	t.mu.Lock()
	t.completed++
	if r.Failed() {
		t.failed++
	}
	t.mu.Unlock()

	f.Complete(r)
}

func (t *resultTable[R]) counts() (size int, completed, failed int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.futures), t.completed, t.failed
}
