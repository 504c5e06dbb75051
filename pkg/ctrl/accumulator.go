package ctrl

// Accumulator is a fixed size ring buffer keeping the latest samples.
// At(0) is the newest one.
type Accumulator[T any] struct {
	buf  []T
	head int
}

// NewAccumulator creates an Accumulator of size n filled with init.
func NewAccumulator[T any](n int, init T) *Accumulator[T] {
	a := &Accumulator[T]{buf: make([]T, n)}
	a.Clear(init)
	return a
}

// Clear fills the buffer with v.
func (a *Accumulator[T]) Clear(v T) {
	for i := range a.buf {
		a.buf[i] = v
	}
	a.head = 0
}

// Push adds the newest sample, dropping the oldest.
func (a *Accumulator[T]) Push(v T) {
	a.head = (a.head + 1) % len(a.buf)
	a.buf[a.head] = v
}

// At returns the i-th newest sample.
func (a *Accumulator[T]) At(i int) T {
	n := len(a.buf)
	return a.buf[((a.head-i)%n+n)%n]
}

// Size is the capacity of the buffer.
func (a *Accumulator[T]) Size() int {
	return len(a.buf)
}
