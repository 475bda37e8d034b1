package sequence

import "sync"

// Queue is an unbounded FIFO safe for concurrent producers. It is the
// hand-off point between goroutines that produce work and the single
// goroutine that consumes it.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Enqueue(value T) {
	q.mu.Lock()
	q.items = append(q.items, value)
	q.mu.Unlock()
}

func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	var zero T
	q.items[0] = zero // avoid memory leak
	q.items = q.items[1:]
	return item, true
}

// Drain detaches everything queued so far and hands it to fn in enqueue order.
// Items enqueued while fn runs wait for the next Drain. It returns the number
// of items processed.
func (q *Queue[T]) Drain(fn func(T)) int {
	q.mu.Lock()
	batch := q.items
	q.items = nil
	q.mu.Unlock()

	for _, item := range batch {
		fn(item)
	}
	return len(batch)
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}
