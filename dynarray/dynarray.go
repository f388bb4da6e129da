// Package dynarray provides a growable, index-addressed sequence. It is the
// backing store for the heap and the target of the in-place heapsort.
package dynarray

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned by Pop when the array has no elements.
var ErrEmpty = errors.New("dynarray: array is empty")

// ErrIndexOutOfRange is wrapped by every IndexError.
var ErrIndexOutOfRange = errors.New("dynarray: index out of range")

// IndexError reports an access outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("dynarray: index %d out of range [0:%d]", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

const minCapacity = 4

// Array is a dynamically sized sequence. The zero value is an empty array
// ready to use.
type Array[T any] struct {
	data []T
	size int
}

func New[T any]() *Array[T] {
	return &Array[T]{}
}

// FromSlice returns an array holding a copy of s. Later writes to s are not
// visible through the array, and vice versa.
func FromSlice[T any](s []T) *Array[T] {
	a := &Array[T]{}
	if len(s) == 0 {
		return a
	}
	a.data = make([]T, max(minCapacity, len(s)))
	a.size = copy(a.data, s)
	return a
}

// Clone returns an independent copy of a. Cloning a nil array yields an
// empty one.
func (a *Array[T]) Clone() *Array[T] {
	if a == nil {
		return New[T]()
	}
	return FromSlice(a.data[:a.size])
}

func (a *Array[T]) Len() int { return a.size }

func (a *Array[T]) IsEmpty() bool { return a.size == 0 }

func (a *Array[T]) Cap() int { return len(a.data) }

func (a *Array[T]) check(i int) error {
	if i < 0 || i >= a.size {
		return &IndexError{Index: i, Len: a.size}
	}
	return nil
}

// Get returns the element at index i.
func (a *Array[T]) Get(i int) (T, error) {
	if err := a.check(i); err != nil {
		var zero T
		return zero, err
	}
	return a.data[i], nil
}

// Set replaces the element at index i.
func (a *Array[T]) Set(i int, v T) error {
	if err := a.check(i); err != nil {
		return err
	}
	a.data[i] = v
	return nil
}

// At is like Get but panics with an *IndexError when i is out of range, the
// way indexing a slice would.
func (a *Array[T]) At(i int) T {
	if err := a.check(i); err != nil {
		panic(err)
	}
	return a.data[i]
}

// Put is like Set but panics on a bad index.
func (a *Array[T]) Put(i int, v T) {
	if err := a.check(i); err != nil {
		panic(err)
	}
	a.data[i] = v
}

func (a *Array[T]) Swap(i, j int) {
	if err := a.check(i); err != nil {
		panic(err)
	}
	if err := a.check(j); err != nil {
		panic(err)
	}
	a.data[i], a.data[j] = a.data[j], a.data[i]
}

// Append adds v after the last element, doubling the capacity when full.
func (a *Array[T]) Append(v T) {
	if a.size == len(a.data) {
		a.resize(max(minCapacity, 2*len(a.data)))
	}
	a.data[a.size] = v
	a.size++
}

// Pop removes and returns the last element. The capacity is halved once the
// array drops to a quarter full, but never below minCapacity.
func (a *Array[T]) Pop() (T, error) {
	var zero T
	if a.size == 0 {
		return zero, ErrEmpty
	}
	a.size--
	v := a.data[a.size]
	a.data[a.size] = zero
	if c := len(a.data); c > minCapacity && a.size*4 <= c {
		a.resize(max(minCapacity, c/2))
	}
	return v, nil
}

func (a *Array[T]) resize(capacity int) {
	data := make([]T, capacity)
	copy(data, a.data[:a.size])
	a.data = data
}

// Slice returns a copy of the elements in index order.
func (a *Array[T]) Slice() []T {
	s := make([]T, a.size)
	copy(s, a.data[:a.size])
	return s
}

func (a *Array[T]) String() string {
	return fmt.Sprint(a.data[:a.size])
}
