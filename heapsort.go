package minheap

import (
	"github.com/aarongable/minheap/dynarray"
	"golang.org/x/exp/constraints"
)

// siftDown moves the element at i toward the leaves of the heap occupying
// a[0:n]. before decides which child is promoted: the right child wins only
// if it strictly comes before the left one.
func siftDown[T any](a *dynarray.Array[T], i, n int, before func(x, y T) bool) {
	for {
		j := left(i)
		if j >= n || j < 0 { // j < 0 after int overflow
			return
		}
		if r := j + 1; r < n && before(a.At(r), a.At(j)) {
			j = r
		}
		if !before(a.At(j), a.At(i)) {
			return
		}
		a.Swap(i, j)
		i = j
	}
}

// HeapSort sorts a in place into descending order.
func HeapSort[T constraints.Ordered](a *dynarray.Array[T]) {
	heapSort(a, ordered[T], true)
}

// HeapSortFunc sorts a in place so that no element comes before (by less) the
// one preceding it: the largest element first.
func HeapSortFunc[T any](a *dynarray.Array[T], less func(x, y T) bool) {
	heapSort(a, less, true)
}

// HeapSortAscending sorts a in place into ascending order.
func HeapSortAscending[T constraints.Ordered](a *dynarray.Array[T]) {
	heapSort(a, ordered[T], false)
}

// HeapSortAscendingFunc sorts a in place so that no element comes before (by
// less) the one preceding it: the smallest element first.
func HeapSortAscendingFunc[T any](a *dynarray.Array[T], less func(x, y T) bool) {
	heapSort(a, less, false)
}

// heapSort builds a max-heap in a, then repeatedly swaps the maximum to the
// end of the shrinking active range. That leaves a ascending; descending
// output reverses it afterwards.
func heapSort[T any](a *dynarray.Array[T], less func(x, y T) bool, descending bool) {
	greater := func(x, y T) bool { return less(y, x) }

	n := a.Len()
	for i := n/2 - 1; i >= 0; i-- {
		siftDown(a, i, n, greater)
	}
	for boundary := n - 1; boundary > 0; boundary-- {
		a.Swap(0, boundary)
		siftDown(a, 0, boundary, greater)
	}

	if descending {
		reverse(a)
	}
}

func reverse[T any](a *dynarray.Array[T]) {
	for i, j := 0, a.Len()-1; i < j; i, j = i+1, j-1 {
		a.Swap(i, j)
	}
}
