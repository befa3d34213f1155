package buffer

import (
	"sync/atomic"
)

// Statistics tracks queue activity with atomic counters. A Statistics
// value is always attached to a Queue; observability is not optional.
type Statistics struct {
	pushes  atomic.Int64
	drops   atomic.Int64
	drained atomic.Int64
	size    atomic.Int64
	maxSize atomic.Int64
}

// NewStatistics creates an empty Statistics.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Push records one enqueued element.
func (s *Statistics) Push() {
	s.pushes.Add(1)
}

// Drop records one element evicted by overflow.
func (s *Statistics) Drop() {
	s.drops.Add(1)
}

// DrainCount records n elements removed by a drain.
func (s *Statistics) DrainCount(n int64) {
	s.drained.Add(n)
}

// UpdateSize records the current queue depth and tracks the high point.
func (s *Statistics) UpdateSize(size int64) {
	s.size.Store(size)
	for {
		max := s.maxSize.Load()
		if size <= max || s.maxSize.CompareAndSwap(max, size) {
			return
		}
	}
}

// Pushes returns the total number of enqueued elements.
func (s *Statistics) Pushes() int64 { return s.pushes.Load() }

// Drops returns the total number of evicted elements.
func (s *Statistics) Drops() int64 { return s.drops.Load() }

// Drained returns the total number of elements removed by drains.
func (s *Statistics) Drained() int64 { return s.drained.Load() }

// Size returns the last recorded queue depth.
func (s *Statistics) Size() int64 { return s.size.Load() }

// MaxSize returns the highest recorded queue depth.
func (s *Statistics) MaxSize() int64 { return s.maxSize.Load() }
