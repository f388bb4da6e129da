// Package minheap implements a binary min-heap over a growable array, and an
// in-place heapsort built from the same percolation logic.
package minheap

import (
	"errors"

	"github.com/aarongable/minheap/dynarray"
	"golang.org/x/exp/constraints"
)

// ErrEmpty is returned by GetMin and RemoveMin when the heap has no elements.
var ErrEmpty = errors.New("minheap: heap is empty")

// Orderable types express a total ordering: any two items of the type can
// be compared and are guaranteed to have an ordering relative to each other.
type Orderable[T any] interface {
	// Before takes another object of the same type, and returns true if this
	// object comes before the other, or false otherwise.
	Before(T) bool
}

// MinHeap keeps its smallest element at index 0 of a dynarray.Array, which
// it owns exclusively.
type MinHeap[T any] struct {
	heap *dynarray.Array[T]
	less func(a, b T) bool
}

// New returns a heap ordered by <. Each element of initial is added in turn.
func New[T constraints.Ordered](initial ...T) *MinHeap[T] {
	return NewFunc(ordered[T], initial...)
}

// NewOrderable returns a heap ordered by the elements' Before method.
func NewOrderable[T Orderable[T]](initial ...T) *MinHeap[T] {
	return NewFunc(func(a, b T) bool { return a.Before(b) }, initial...)
}

// NewFunc returns a heap ordered by less, which must be a strict weak order.
func NewFunc[T any](less func(a, b T) bool, initial ...T) *MinHeap[T] {
	h := &MinHeap[T]{heap: dynarray.New[T](), less: less}
	for _, v := range initial {
		h.Add(v)
	}
	return h
}

func ordered[T constraints.Ordered](a, b T) bool { return a < b }

func parent(i int) int { return (i - 1) / 2 }
func left(i int) int   { return (i * 2) + 1 }
func right(i int) int  { return left(i) + 1 }

// Add inserts v and sifts it up toward the root.
func (h *MinHeap[T]) Add(v T) {
	h.heap.Append(v)
	h.up(h.heap.Len() - 1)
}

func (h *MinHeap[T]) up(i int) {
	for i > 0 {
		p := parent(i)
		// parent <= node
		if !h.less(h.heap.At(i), h.heap.At(p)) {
			break
		}
		h.heap.Swap(p, i)
		i = p
	}
}

func (h *MinHeap[T]) IsEmpty() bool { return h.heap.IsEmpty() }

func (h *MinHeap[T]) Size() int { return h.heap.Len() }

// GetMin returns the smallest element without removing it.
func (h *MinHeap[T]) GetMin() (T, error) {
	if h.heap.IsEmpty() {
		var zero T
		return zero, ErrEmpty
	}
	return h.heap.At(0), nil
}

// RemoveMin removes and returns the smallest element. The heap is left
// untouched when it returns ErrEmpty.
func (h *MinHeap[T]) RemoveMin() (T, error) {
	if h.heap.IsEmpty() {
		var zero T
		return zero, ErrEmpty
	}
	smallest := h.heap.At(0)
	moved, _ := h.heap.Pop()
	if h.heap.IsEmpty() {
		return smallest, nil
	}
	h.heap.Put(0, moved)
	h.down(moved)
	return smallest, nil
}

// down walks the value moved into the root toward the leaves. Children are
// compared against moved itself, which stays the occupant of the current
// node throughout the walk.
func (h *MinHeap[T]) down(moved T) {
	n := h.heap.Len()
	i := 0
	for {
		j := left(i)
		if j >= n {
			break
		}
		if r := right(i); r < n && h.less(h.heap.At(r), h.heap.At(j)) {
			j = r
		}
		child := h.heap.At(j)
		if !h.less(child, moved) {
			break
		}
		h.heap.Put(i, child)
		h.heap.Put(j, moved)
		i = j
	}
}

// BuildHeap replaces the heap's contents with a copy of source and restores
// the heap property bottom-up. source is never retained; a nil source leaves
// the heap empty.
func (h *MinHeap[T]) BuildHeap(source *dynarray.Array[T]) {
	h.heap = source.Clone()
	h.heapify()
}

// BuildHeapSlice is BuildHeap for a plain slice.
func (h *MinHeap[T]) BuildHeapSlice(source []T) {
	h.heap = dynarray.FromSlice(source)
	h.heapify()
}

func (h *MinHeap[T]) heapify() {
	n := h.heap.Len()
	for i := n / 2; i >= 0; i-- {
		siftDown(h.heap, i, n, h.less)
	}
}

// Clear discards every element.
func (h *MinHeap[T]) Clear() {
	h.heap = dynarray.New[T]()
}

// String renders the heap in array order, e.g. "HEAP [1 3 2]".
func (h *MinHeap[T]) String() string {
	return "HEAP " + h.heap.String()
}
