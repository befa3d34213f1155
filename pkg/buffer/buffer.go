// Package buffer provides a thread-safe bounded FIFO queue with a
// drop-oldest overflow policy, used as the pending-value queue behind
// each subscription.
//
// The queue deliberately prefers recency under overload: when full, the
// oldest element is evicted to make room for the newest. Statistics are
// always collected; Prometheus metrics are optional.
package buffer

import (
	"sync"
)

// Queue is a bounded FIFO with drop-oldest overflow.
type Queue[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	metrics  *queueMetrics
	onDrop   func(T)
}

// Option configures a Queue.
type Option[T any] func(*Queue[T])

// WithDropCallback registers a callback invoked (outside the lock) for
// every element evicted by overflow or Clear.
func WithDropCallback[T any](fn func(T)) Option[T] {
	return func(q *Queue[T]) { q.onDrop = fn }
}

// New creates a bounded queue with the given capacity. Capacity below 1
// is raised to 1.
func New[T any](capacity int, opts ...Option[T]) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends an item, evicting the oldest element when full. It
// reports whether an element was dropped.
func (q *Queue[T]) Push(item T) (dropped bool) {
	var victim T

	q.mu.Lock()
	if q.size == q.capacity {
		victim = q.items[q.tail]
		q.tail = (q.tail + 1) % q.capacity
		q.size--
		dropped = true

		q.stats.Drop()
		if q.metrics != nil {
			q.metrics.recordDrop()
		}
	}

	q.items[q.head] = item
	q.head = (q.head + 1) % q.capacity
	q.size++

	q.stats.Push()
	q.stats.UpdateSize(int64(q.size))
	if q.metrics != nil {
		q.metrics.recordPush(q.size, q.capacity)
	}
	onDrop := q.onDrop
	q.mu.Unlock()

	if dropped && onDrop != nil {
		onDrop(victim)
	}
	return dropped
}

// Drain atomically removes and returns every queued element in FIFO
// order. An empty queue drains to an empty (non-nil) slice.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, q.size)
	var zero T
	for i := 0; i < len(out); i++ {
		out[i] = q.items[q.tail]
		q.items[q.tail] = zero // release for GC
		q.tail = (q.tail + 1) % q.capacity
	}
	q.size = 0
	q.head = q.tail

	q.stats.DrainCount(int64(len(out)))
	q.stats.UpdateSize(0)
	if q.metrics != nil {
		q.metrics.updateSize(0, q.capacity)
	}
	return out
}

// Peek returns the oldest element without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	if q.size == 0 {
		return zero, false
	}
	return q.items[q.tail], true
}

// Snapshot returns a copy of the queue contents in FIFO order without
// removing anything.
func (q *Queue[T]) Snapshot() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]T, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.items[(q.tail+i)%q.capacity]
	}
	return out
}

// Size returns the current number of queued elements.
func (q *Queue[T]) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Capacity returns the queue bound. Immutable after construction.
func (q *Queue[T]) Capacity() int {
	return q.capacity
}

// Clear removes all elements, invoking the drop callback for each.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	victims := make([]T, q.size)
	var zero T
	for i := 0; i < len(victims); i++ {
		idx := (q.tail + i) % q.capacity
		victims[i] = q.items[idx]
		q.items[idx] = zero
	}
	q.head = 0
	q.tail = 0
	q.size = 0
	q.stats.UpdateSize(0)
	if q.metrics != nil {
		q.metrics.updateSize(0, q.capacity)
	}
	onDrop := q.onDrop
	q.mu.Unlock()

	if onDrop != nil {
		for _, v := range victims {
			onDrop(v)
		}
	}
}

// Stats returns queue statistics (always available).
func (q *Queue[T]) Stats() *Statistics {
	return q.stats
}
