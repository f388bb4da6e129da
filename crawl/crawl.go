package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aarongable/minheap"
	"github.com/aarongable/minheap/dynarray"
	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/client"
	"github.com/google/certificate-transparency-go/jsonclient"
	"github.com/google/certificate-transparency-go/scanner"
)

// entryData contains the index / sequence number of an entry, as well as the
// leaf data contained at that index. It also implements the Orderable interface
// so that it can be used in a MinHeap.
type entryData struct {
	index int64
	entry *ct.RawLogEntry
}

func (ed entryData) Before(other entryData) bool {
	return ed.index < other.index
}

func (ed entryData) timestamp() uint64 {
	return ed.entry.Leaf.TimestampedEntry.Timestamp
}

// regression records an entry whose timestamp is later than its successor's.
type regression struct {
	index int64
	delta uint64
}

// skew is the number of milliseconds an entry may precede its successor by
// before it is reported.
const skew = 1000

func processEntry(prev, curr entryData) (regression, bool) {
	if prev.timestamp() <= skew+curr.timestamp() {
		return regression{}, false
	}
	fmt.Println("Found out-of-order entry:")
	fmt.Printf("  Index: %d\n", prev.index)
	fmt.Printf("  Timestamps: %d, %d\n", prev.timestamp(), curr.timestamp())
	switch prev.entry.Leaf.TimestampedEntry.EntryType {
	case ct.X509LogEntryType:
		cert, err := prev.entry.Leaf.X509Certificate()
		if err != nil {
			fmt.Printf("  Failed to parse: %v\n", err)
		} else {
			fmt.Printf("  Serial: %d\n", cert.SerialNumber)
		}
	case ct.PrecertLogEntryType:
		cert, err := prev.entry.Leaf.Precertificate()
		if err != nil {
			fmt.Printf("  Failed to parse: %v\n", err)
		} else {
			fmt.Printf("  Serial: %d\n", cert.SerialNumber)
		}
	}
	return regression{index: prev.index, delta: prev.timestamp() - curr.timestamp()}, true
}

// sequencer receives entries in any order and hands them to visit strictly in
// index order, holding early arrivals in a MinHeap until the gap before them
// has been filled. It is not safe for concurrent use.
type sequencer struct {
	buffer    *minheap.MinHeap[entryData]
	nextIndex int64
	last      entryData
	visit     func(prev, curr entryData)
	progress  io.Writer
}

func newSequencer(start int64, visit func(prev, curr entryData)) *sequencer {
	return &sequencer{
		buffer:    minheap.NewOrderable[entryData](),
		nextIndex: start,
		last:      entryData{index: -1},
		visit:     visit,
		progress:  os.Stdout,
	}
}

func (s *sequencer) push(e entryData) {
	// If it's not the entry we want, save it for later.
	if e.index != s.nextIndex {
		s.buffer.Add(e)
		return
	}
	s.accept(e)

	// Try to process the buffer, just in case we've caught up to it.
	for {
		next, err := s.buffer.GetMin()
		if err != nil || next.index != s.nextIndex {
			return
		}
		e, _ = s.buffer.RemoveMin()
		s.accept(e)
	}
}

func (s *sequencer) accept(e entryData) {
	// The first entry only initializes our last-seen tracker so we have a
	// basis for comparison.
	if s.last.index == -1 {
		s.last = e
		s.nextIndex = e.index + 1
		return
	}
	s.visit(s.last, e)
	s.last = e
	s.nextIndex = e.index + 1
	if s.nextIndex%1000 == 0 {
		fmt.Fprintf(s.progress, "Processed up to index %d\n", s.nextIndex)
	}
}

// pending reports how many entries are waiting for an earlier one.
func (s *sequencer) pending() int {
	return s.buffer.Size()
}

// worst returns the n largest regressions, largest first.
func worst(found *dynarray.Array[regression], n int) []regression {
	sorted := found.Clone()
	minheap.HeapSortFunc(sorted, func(a, b regression) bool { return a.delta < b.delta })
	out := sorted.Slice()
	if n < len(out) {
		out = out[:n]
	}
	return out
}

func main() {
	logURI := flag.String("log_uri", "https://oak.ct.letsencrypt.org/2022/", "CT log base URI")
	batchSize := flag.Int("batch_size", 256, "Max number of entries to request at per call to get-entries")
	numWorkers := flag.Int("num_workers", 2, "Number of concurrent workers")
	startIndex := flag.Int64("start_index", 0, "Log index to start scanning at")
	endIndex := flag.Int64("end_index", 0, "Log index to end scanning at (non-inclusive, 0 = end of log)")
	reportTop := flag.Int("report_top", 10, "Number of largest timestamp regressions to summarize at exit")
	flag.Parse()

	logClient, err := client.New(*logURI, &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   30 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			MaxIdleConnsPerHost:   10,
			DisableKeepAlives:     false,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}, jsonclient.Options{UserAgent: "le-ct-crawler/0.1"})
	if err != nil {
		log.Fatal("Failed to create log client")
	}

	fetcher := scanner.NewFetcher(
		logClient,
		&scanner.FetcherOptions{
			BatchSize:     *batchSize,
			StartIndex:    *startIndex,
			EndIndex:      *endIndex,
			ParallelFetch: *numWorkers,
			Continuous:    false,
		},
	)

	// Create a callback that sends fetched entries to a channel to be processed.
	entries := make(chan entryData)
	processBatch := func(batch scanner.EntryBatch) {
		for i, e := range batch.Entries {
			index := batch.Start + int64(i)
			rawLogEntry, err := ct.RawLogEntryFromLeaf(index, &e)
			if err != nil {
				fmt.Printf("failed to process entry at index %d: %v\n", index, err)
				continue
			}
			entries <- entryData{index: index, entry: rawLogEntry}
		}
	}

	// Start a worker which reads entries from the fetchers and sequences them
	// by index. When processing an entry, it compares it to the immediately
	// prior entry: if the timestamp has traveled backwards in time, it outputs
	// the *prior* entry, on the assumption that its timestamp was incorrectly
	// forward in time.
	found := dynarray.New[regression]()
	seq := newSequencer(*startIndex, func(prev, curr entryData) {
		if r, ok := processEntry(prev, curr); ok {
			found.Append(r)
		}
	})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range entries {
			seq.push(e)
		}
	}()

	// Set up a context and a signal-catcher to cancel the context so we can
	// break out cleanly if we need to.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM)
		signal.Notify(sigChan, syscall.SIGINT)
		signal.Notify(sigChan, syscall.SIGHUP)

		<-sigChan
		cancel()

		os.Exit(0)
	}()

	// Finally, run the fetcher, letting it feed data into the worker above.
	err = fetcher.Run(ctx, processBatch)
	close(entries)
	wg.Wait()
	if err != nil {
		log.Fatal(err)
	}

	if n := seq.pending(); n > 0 {
		first, _ := seq.buffer.GetMin()
		log.Printf("%d entries never became contiguous, first at index %d", n, first.index)
	}
	if found.Len() > 0 {
		fmt.Printf("Largest regressions (%d found):\n", found.Len())
		for _, r := range worst(found, *reportTop) {
			fmt.Printf("  Index: %d, ahead by %dms\n", r.index, r.delta)
		}
	}
}
