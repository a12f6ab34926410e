package store

// Ring is a fixed-capacity FIFO backed by a preallocated slice.
//
// Push is O(1): once the ring is full, the write overwrites the oldest
// element and advances the start cursor. Ring is not safe for concurrent
// use; [MemoryStore] guards its rings with a mutex.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing creates an empty ring holding at most capacity elements.
// A capacity below one is treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the ring is full.
// It reports whether an element was evicted.
func (r *Ring[T]) Push(v T) bool {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return false
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return true
}

// Snapshot returns the elements oldest-first in a newly allocated slice.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Last returns the most recently pushed element.
func (r *Ring[T]) Last() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the maximum number of stored elements.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Reset empties the ring without reallocating.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start = 0
	r.size = 0
}
