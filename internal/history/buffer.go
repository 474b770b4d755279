// Package history keeps the bounded, in-memory reading history per instrument.
package history

import "sync"

// DefaultCapacity is the number of points retained per instrument.
const DefaultCapacity = 20

// Buffer is a fixed-capacity circular buffer. Once full, each Push drops the
// oldest element. It is safe for concurrent use.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	start int
	size  int
}

// NewBuffer returns an empty buffer. capacity <= 0 uses DefaultCapacity.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the buffer is full.
func (b *Buffer[T]) Push(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.start+b.size)%capacity] = v
		b.size++
		return
	}
	b.items[b.start] = v
	b.start = (b.start + 1) % capacity
}

// Snapshot returns a copy of the contents, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, b.size)
	capacity := len(b.items)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.start+i)%capacity]
	}
	return out
}

// Len reports the number of stored elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap reports the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }
