package utils

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer.
// True ring buffer - no resizing allowed!
// -----------------------------------------------------------------------------

type RingBuffer[T any] struct {
	data     []T
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}

	return &RingBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Append adds an element, overwriting the oldest one when full
func (rb *RingBuffer[T]) Append(item T) {
	rb.data[rb.index] = item
	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetNewestFirst returns all data from newest to oldest
func (rb *RingBuffer[T]) GetNewestFirst() []T {
	result := make([]T, rb.size)

	for i := 0; i < rb.size; i++ {
		idx := (rb.index - 1 - i + rb.capacity) % rb.capacity
		result[i] = rb.data[idx]
	}

	return result
}
