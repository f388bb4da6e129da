// Command heapdemo walks through every MinHeap operation and both heapsorts,
// printing the heap after each step.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/aarongable/minheap"
	"github.com/aarongable/minheap/dynarray"
)

type section struct {
	name string
	run  func(w io.Writer) error
}

var sections = []section{
	{"add", demoAdd},
	{"is_empty", demoIsEmpty},
	{"get_min", demoGetMin},
	{"remove_min", demoRemoveMin},
	{"build_heap", demoBuildHeap},
	{"heapsort", demoHeapSort},
	{"size", demoSize},
	{"clear", demoClear},
}

func demoAdd(w io.Writer) error {
	h := minheap.New[int]()
	fmt.Fprintln(w, h, h.IsEmpty())
	for v := 300; v > 200; v -= 15 {
		h.Add(v)
		fmt.Fprintln(w, h)
	}

	s := minheap.New("fish", "bird")
	fmt.Fprintln(w, s)
	for _, v := range []string{"monkey", "zebra", "elephant", "horse", "bear"} {
		s.Add(v)
		fmt.Fprintln(w, s)
	}
	return nil
}

func demoIsEmpty(w io.Writer) error {
	fmt.Fprintln(w, minheap.New(2, 4, 12, 56, 8, 34, 67).IsEmpty())
	fmt.Fprintln(w, minheap.New[int]().IsEmpty())
	return nil
}

func demoGetMin(w io.Writer) error {
	h := minheap.New("fish", "bird")
	fmt.Fprintln(w, h)
	a, err := h.GetMin()
	if err != nil {
		return err
	}
	b, err := h.GetMin()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, a, b)
	return nil
}

func demoRemoveMin(w io.Writer) error {
	h := minheap.New(1, 10, 2, 9, 3, 8, 4, 7, 5, 6)
	for !h.IsEmpty() {
		fmt.Fprint(w, h, " ")
		v, err := h.RemoveMin()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, v)
	}
	return nil
}

func demoBuildHeap(w io.Writer) error {
	da := dynarray.FromSlice([]int{100, 20, 6, 200, 90, 150, 300})
	h := minheap.New(-1, -2)
	fmt.Fprintln(w, h)
	h.BuildHeap(da)
	fmt.Fprintln(w, h)

	fmt.Fprintln(w, "Inserting 500 into input array:")
	if err := da.Set(0, 500); err != nil {
		return err
	}
	fmt.Fprintln(w, da)
	fmt.Fprintln(w, h)
	v, err := h.GetMin()
	if err != nil {
		return err
	}
	if v == 500 {
		return fmt.Errorf("heap shares storage with its input array")
	}
	return nil
}

func demoHeapSort(w io.Writer) error {
	da := dynarray.FromSlice([]int{100, 20, 6, 200, 90, 150, 300})
	fmt.Fprintf(w, "Before: %v\n", da)
	minheap.HeapSort(da)
	fmt.Fprintf(w, "After:  %v\n", da)

	ds := dynarray.FromSlice([]string{"monkey", "zebra", "elephant", "horse", "bear"})
	fmt.Fprintf(w, "Before: %v\n", ds)
	minheap.HeapSort(ds)
	fmt.Fprintf(w, "After:  %v\n", ds)
	minheap.HeapSortAscending(ds)
	fmt.Fprintf(w, "Asc:    %v\n", ds)
	return nil
}

func demoSize(w io.Writer) error {
	fmt.Fprintln(w, minheap.New(100, 20, 6, 200, 90, 150, 300).Size())
	fmt.Fprintln(w, minheap.New[int]().Size())
	return nil
}

func demoClear(w io.Writer) error {
	h := minheap.New("monkey", "zebra", "elephant", "horse", "bear")
	fmt.Fprintln(w, h)
	h.Clear()
	fmt.Fprintln(w, h)
	return nil
}

// run executes the named sections in order, or all of them if names is empty.
func run(w io.Writer, names []string) error {
	selected := sections
	if len(names) > 0 {
		selected = nil
		for _, name := range names {
			found := false
			for _, s := range sections {
				if s.name == name {
					selected = append(selected, s)
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("unknown section %q", name)
			}
		}
	}

	for _, s := range selected {
		fmt.Fprintf(w, "\n%s\n%s\n", s.name, strings.Repeat("-", len(s.name)))
		if err := s.run(w); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func main() {
	only := flag.String("sections", "", "Comma-separated sections to run (default all)")
	flag.Parse()

	var names []string
	if *only != "" {
		names = strings.Split(*only, ",")
	}
	if err := run(os.Stdout, names); err != nil {
		log.Fatal(err)
	}
}
