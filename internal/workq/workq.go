// Package workq is the bounded hand-off queue behind the audit dispatcher and
// the mail queue.
//
// Items are handled by a fixed pool of workers. Push and Close are serialized,
// so an item accepted by Push is always handled before Close returns.
package workq

import (
	"context"
	"sync"
)

// Result says what Push or TryPush did with an item.
type Result int

const (
	// Accepted means a worker will handle the item.
	Accepted Result = iota
	// Full means the buffer had no room (TryPush) or ctx ended first (Push).
	Full
	// Closed means the queue no longer takes items.
	Closed
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Full:
		return "queue full"
	case Closed:
		return "queue closed"
	default:
		return "unknown"
	}
}

// Queue feeds items of type T to handle.
type Queue[T any] struct {
	handle func(T)
	ch     chan T
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines. Non-positive sizes are raised to one.
func New[T any](buffer, workers int, handle func(T)) *Queue[T] {
	if buffer <= 0 {
		buffer = 1
	}
	if workers <= 0 {
		workers = 1
	}
	q := &Queue[T]{handle: handle, ch: make(chan T, buffer)}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.run()
	}
	return q
}

func (q *Queue[T]) run() {
	defer q.wg.Done()
	for item := range q.ch {
		q.handle(item)
	}
}

// TryPush never blocks.
func (q *Queue[T]) TryPush(item T) Result {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return Closed
	}
	select {
	case q.ch <- item:
		return Accepted
	default:
		return Full
	}
}

// Push waits for room until ctx is done. Close waits for pending Pushes.
func (q *Queue[T]) Push(ctx context.Context, item T) Result {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return Closed
	}
	select {
	case q.ch <- item:
		return Accepted
	case <-ctx.Done():
		return Full
	}
}

// Close stops intake, lets the workers drain the buffer and waits for them.
// It is safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	q.wg.Wait()
}
