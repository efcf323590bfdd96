package feed

import "sync"

// Keyed is implemented by records that carry a stable identity, used by the
// buffer to replace re-delivered items in place.
type Keyed interface {
	Key() string
}

// Buffer is a bounded, most-recent-first sequence. Pushing beyond capacity
// drops the oldest entries; re-pushing an id still inside the window
// replaces that entry positionally instead of inserting a duplicate.
type Buffer[T Keyed] struct {
	mu       sync.RWMutex
	capacity int
	items    []T
}

// NewBuffer constructs an empty buffer with the given capacity.
func NewBuffer[T Keyed](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("buffer capacity must be positive")
	}
	return &Buffer[T]{
		capacity: capacity,
		items:    make([]T, 0, capacity),
	}
}

// Push inserts an item at the head, truncating the tail past capacity.
func (b *Buffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if key := item.Key(); key != "" {
		for i := range b.items {
			if b.items[i].Key() == key {
				b.items[i] = item
				return
			}
		}
	}

	b.items = append([]T{item}, b.items...)
	if len(b.items) > b.capacity {
		b.items = b.items[:b.capacity]
	}
}

// Items returns a copy of the retained window, most recent first.
func (b *Buffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Head returns up to limit items from the front of the window.
func (b *Buffer[T]) Head(limit int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.items) {
		limit = len(b.items)
	}
	out := make([]T, limit)
	copy(out, b.items[:limit])
	return out
}

// Len reports the current window size.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Capacity reports the configured bound.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

// Clear empties the window.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
}
