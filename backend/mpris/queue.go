package mpris

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO pumped into a channel. push never blocks, so
// the signal dispatcher is never held up by a slow consumer.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	wake   chan struct{}
	out    chan T
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
	}
}

// push appends v. It returns false once the queue is closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// close stops accepting items. Pending items are still delivered.
func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run delivers items to out until the queue is closed and drained, or ctx
// is done. out is closed on return.
func (q *queue[T]) run(ctx context.Context) {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		item := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- item:
		case <-ctx.Done():
			return
		}
	}
}
