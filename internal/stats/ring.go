// Package stats implements the covariance engine: rolling per-market price
// histories and the hedge-ratio regression that the synthetic arbitrage
// detector consumes.
package stats

// RingBuffer is a fixed-capacity circular buffer. Once full, each Push
// overwrites the oldest element. The backing array is allocated once; Push
// and reads are O(1).
type RingBuffer[T any] struct {
	data  []T
	head  int
	count int
}

// NewRingBuffer creates a buffer holding at most capacity elements.
// Capacity must be positive.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{data: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the buffer is full.
func (b *RingBuffer[T]) Push(v T) {
	b.data[b.head] = v
	b.head = (b.head + 1) % len(b.data)
	if b.count < len(b.data) {
		b.count++
	}
}

// Len returns the number of stored elements, always <= Cap.
func (b *RingBuffer[T]) Len() int { return b.count }

// Cap returns the fixed capacity.
func (b *RingBuffer[T]) Cap() int { return len(b.data) }

// ToSlice returns the stored elements in insertion order, oldest first.
// The returned slice is a copy and safe to mutate.
func (b *RingBuffer[T]) ToSlice() []T {
	out := make([]T, 0, b.count)
	start := b.head - b.count
	if start < 0 {
		start += len(b.data)
	}
	for i := 0; i < b.count; i++ {
		out = append(out, b.data[(start+i)%len(b.data)])
	}
	return out
}

// Last returns the most recently pushed element and true, or the zero value
// and false when the buffer is empty.
func (b *RingBuffer[T]) Last() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	idx := b.head - 1
	if idx < 0 {
		idx += len(b.data)
	}
	return b.data[idx], true
}
