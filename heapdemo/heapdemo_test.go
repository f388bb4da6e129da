package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunAll(t *testing.T) {
	var buf bytes.Buffer
	if err := run(&buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, s := range sections {
		if !strings.Contains(buf.String(), "\n"+s.name+"\n") {
			t.Errorf("output is missing section %q", s.name)
		}
	}
}

func TestRunSections(t *testing.T) {
	tests := []struct {
		section string
		want    string
	}{
		{"heapsort", `
heapsort
--------
Before: [100 20 6 200 90 150 300]
After:  [300 200 150 100 90 20 6]
Before: [monkey zebra elephant horse bear]
After:  [zebra monkey horse elephant bear]
Asc:    [bear elephant horse monkey zebra]
`},
		{"build_heap", `
build_heap
----------
HEAP [-2 -1]
HEAP [6 20 100 200 90 150 300]
Inserting 500 into input array:
[500 20 6 200 90 150 300]
HEAP [6 20 100 200 90 150 300]
`},
		{"clear", `
clear
-----
HEAP [bear elephant monkey zebra horse]
HEAP []
`},
	}
	for _, tc := range tests {
		t.Run(tc.section, func(t *testing.T) {
			var buf bytes.Buffer
			if err := run(&buf, []string{tc.section}); err != nil {
				t.Fatalf("run: %v", err)
			}
			if got := buf.String(); got != tc.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tc.want)
			}
		})
	}
}

func TestRunUnknownSection(t *testing.T) {
	if err := run(&bytes.Buffer{}, []string{"decrease_key"}); err == nil {
		t.Error("run accepted an unknown section")
	}
}
