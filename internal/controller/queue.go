package controller

import "sync"

type event struct {
	user   string
	action string
}

// queue is an unbounded FIFO. ready is signalled whenever an item is
// pushed or the queue closes; a single consumer drains it with pop.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{ready: make(chan struct{}, 1)}
}

// push appends e and reports false once the queue is closed. When close is
// true the queue closes after e.
func (q *queue[T]) push(e T, close bool) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, e)
	q.closed = close
	q.mu.Unlock()

	q.signal()
	return true
}

// close rejects later pushes. Items already queued can still be popped.
func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	e := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return e, true
}

// drained reports whether the queue is closed and empty.
func (q *queue[T]) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}
