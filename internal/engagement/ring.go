package engagement

// Ring is a fixed-capacity FIFO history. Pushing onto a full ring evicts the
// oldest entry. This is the only memory-growth control in the pipeline, so
// pathologically long sessions silently drop their oldest data.
type Ring[T any] struct {
	buf     []T
	head    int // index of the oldest entry
	size    int
	evicted uint64
}

// NewRing creates a ring with the given capacity. Capacity must be positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("engagement: ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry when full.
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	r.evicted++
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int {
	return r.size
}

// Evicted returns how many entries have been dropped since creation.
func (r *Ring[T]) Evicted() uint64 {
	return r.evicted
}

// Items returns the entries oldest-first as a fresh slice.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Do calls fn for each entry, oldest first.
func (r *Ring[T]) Do(fn func(T)) {
	for i := 0; i < r.size; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}

// Reset drops all entries and clears the eviction counter.
func (r *Ring[T]) Reset() {
	r.head = 0
	r.size = 0
	r.evicted = 0
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
}
