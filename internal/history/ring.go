// Package history keeps a bounded, in-memory window of recent items.
package history

import "sync"

// DefaultCapacity and DefaultLimit are the sizes used for GPS fixes when the
// caller does not configure them.
const (
	DefaultCapacity = 100
	DefaultLimit    = 50
)

// Ring is a drop-oldest buffer. Once full, every Append evicts the earliest
// item, so Len never exceeds the capacity.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	start int
	size  int
}

func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring[T]{items: make([]T, capacity)}
}

func (r *Ring[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.items)
	if r.size < capacity {
		r.items[(r.start+r.size)%capacity] = item
		r.size++
		return
	}
	r.items[r.start] = item
	r.start = (r.start + 1) % capacity
}

// Recent returns the last min(limit, Len()) items, oldest first. The slice is
// a copy and safe to retain.
func (r *Ring[T]) Recent(limit int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit > r.size {
		limit = r.size
	}
	if limit <= 0 {
		return []T{}
	}

	out := make([]T, limit)
	capacity := len(r.items)
	offset := r.size - limit
	for i := range out {
		out[i] = r.items[(r.start+offset+i)%capacity]
	}
	return out
}

func (r *Ring[T]) Latest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[(r.start+r.size-1)%len(r.items)], true
}

func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap is fixed at construction.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}
