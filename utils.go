package measplot

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Float | constraints.Integer
}

func Filter[T any](slice []T, predicate func(T) bool) []T {
	filtered := make([]T, 0, len(slice))
	for _, elem := range slice {
		if predicate(elem) {
			filtered = append(filtered, elem)
		}
	}
	return filtered
}

func Map[T, U any](slice []T, f func(T) U) []U {
	mapped := make([]U, len(slice))
	for i, elem := range slice {
		mapped[i] = f(elem)
	}
	return mapped
}

func Max[T Number](a T, b T) T {
	if a < b {
		return b
	}

	return a
}

// Fixed capacity ring that keeps the most recent values. Not safe for
// concurrent use; the FrameBroadcaster guards it with its own mutex.
type Ring[T any] struct {
	values []T
	next   int
	full   bool
}

// NewRing panics if capacity is not positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}

	return &Ring[T]{
		values: make([]T, capacity),
	}
}

func (r *Ring[T]) Push(value T) {
	r.values[r.next] = value
	r.next = (r.next + 1) % len(r.values)
	if r.next == 0 {
		r.full = true
	}
}

func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.values)
	}
	return r.next
}

// ReadAllOrdered returns the stored values, oldest first.
func (r *Ring[T]) ReadAllOrdered() []T {
	if !r.full {
		return append([]T(nil), r.values[:r.next]...)
	}

	arr := make([]T, 0, len(r.values))
	arr = append(arr, r.values[r.next:]...)
	arr = append(arr, r.values[:r.next]...)
	return arr
}

// Latest returns the most recently pushed value.
func (r *Ring[T]) Latest() (T, bool) {
	var zero T
	if r.Len() == 0 {
		return zero, false
	}

	i := r.next - 1
	if i < 0 {
		i = len(r.values) - 1
	}
	return r.values[i], true
}
