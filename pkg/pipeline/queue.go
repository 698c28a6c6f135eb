package pipeline

import "context"

// Queue is a bounded single-producer/single-consumer FIFO. Put blocks on
// a full queue to provide backpressure; Get blocks on an empty queue.
// Draining does not close the queue — queues are created once per
// session and live for its duration.
type Queue[T any] struct {
	ch chan T
}

// NewQueue creates a queue with the given capacity. Capacities of
// 32-128 are recommended for SentenceQ and AudioQ (spec.md ADD §4.1);
// IngressQ is typically capacity 1 since at most one turn runs at a
// time.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Put blocks until there is room or the context is done. Returns
// ctx.Err() on cancellation; a context that is already done fails the
// put even when the queue has room.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut attempts a non-blocking put, returning false if the queue is
// full.
func (q *Queue[T]) TryPut(item T) bool {
	select {
	case q.ch <- item:
		return true
	default:
		return false
	}
}

// Get blocks until an item is available or the context is done.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case item := <-q.ch:
		return item, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TryGet attempts a non-blocking get, returning ok=false if empty.
func (q *Queue[T]) TryGet() (item T, ok bool) {
	select {
	case item = <-q.ch:
		return item, true
	default:
		return item, false
	}
}

// Drain removes and discards all currently queued items without waking
// any blocked producer beyond what its own cancellation does. It is the
// cancellation primitive: an interrupt drains all three pipeline queues
// synchronously before acknowledging.
func (q *Queue[T]) Drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

// Len reports the number of items currently queued. Intended for tests
// and metrics, not for control flow (it is immediately stale under
// concurrent access).
func (q *Queue[T]) Len() int {
	return len(q.ch)
}
