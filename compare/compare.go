package main

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/aarongable/minheap"
	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/client"
	"github.com/google/certificate-transparency-go/jsonclient"
	"github.com/google/certificate-transparency-go/tls"
	"github.com/google/trillian/client/backoff"
)

type candidateEntry struct {
	Index     int64
	Timestamp uint64
	Serial    *big.Int
}

func parseCandidate(e []string) (candidateEntry, error) {
	index, err := strconv.ParseInt(e[0], 10, 64)
	if err != nil {
		return candidateEntry{}, fmt.Errorf("parsing index %q: %w", e[0], err)
	}

	timeMillis, err := strconv.ParseUint(e[1], 10, 64)
	if err != nil {
		return candidateEntry{}, fmt.Errorf("parsing timestamp %q: %w", e[1], err)
	}

	serial, ok := new(big.Int).SetString(e[3], 10)
	if !ok {
		return candidateEntry{}, fmt.Errorf("failed to convert serial %q to bigint", e[3])
	}

	return candidateEntry{index, timeMillis, serial}, nil
}

// mismatch is a log entry whose timestamp differs from the candidate's. It
// implements the Orderable interface so results can be emitted by index.
type mismatch struct {
	index     int64
	leafInput []byte
}

func (m mismatch) Before(other mismatch) bool {
	return m.index < other.index
}

func checkEntry(c candidateEntry, entry ct.LogEntry) (mismatch, bool, error) {
	if entry.Leaf.TimestampedEntry.Timestamp == c.Timestamp {
		return mismatch{}, false, nil
	}

	fmt.Printf("Found mismatch:\n")
	fmt.Printf("  Index: %d\n", c.Index)
	fmt.Printf("  Orig TS: %d\n", entry.Leaf.TimestampedEntry.Timestamp)
	fmt.Printf("  Dupl TS: %d\n", c.Timestamp)

	leafInput, err := tls.Marshal(entry.Leaf)
	if err != nil {
		return mismatch{}, false, fmt.Errorf("failed to marshal leaf_input: %w", err)
	}
	return mismatch{index: c.Index, leafInput: leafInput}, true, nil
}

// newBackoff returns the retry policy for get-entries calls. A Backoff is not
// safe for concurrent use, so each worker needs its own.
func newBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    1 * time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}
}

// retriable marks errors worth another attempt: rate limiting, server-side
// failures and transport errors. Anything else is returned unchanged and ends
// the retry loop.
func retriable(err error) error {
	var rspErr *jsonclient.RspError
	if errors.As(err, &rspErr) {
		if rspErr.StatusCode == http.StatusTooManyRequests || rspErr.StatusCode >= http.StatusInternalServerError {
			return backoff.RetriableErrorf("get-entries: %v", err)
		}
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return backoff.RetriableErrorf("get-entries: %v", err)
	}
	return err
}

// fetchEntry retrieves the single log entry at index, retrying transient
// failures until ctx is done.
func fetchEntry(ctx context.Context, logClient *client.LogClient, bo *backoff.Backoff, index int64) (ct.LogEntry, error) {
	var r []ct.LogEntry
	err := bo.Retry(ctx, func() error {
		var err error
		r, err = logClient.GetEntries(ctx, index, index)
		return retriable(err)
	})
	if err != nil {
		return ct.LogEntry{}, err
	}
	if len(r) != 1 {
		return ct.LogEntry{}, fmt.Errorf("got wrong number of entries from log: %d", len(r))
	}
	return r[0], nil
}

// writeMismatches drains results into w as CSV rows in ascending index order.
func writeMismatches(w io.Writer, results *minheap.MinHeap[mismatch]) error {
	output := csv.NewWriter(w)
	for !results.IsEmpty() {
		m, err := results.RemoveMin()
		if err != nil {
			return err
		}
		if err := output.Write([]string{fmt.Sprintf("%d", m.index), hex.EncodeToString(m.leafInput)}); err != nil {
			return err
		}
	}
	output.Flush()
	return output.Error()
}

func main() {
	entryFile := flag.String("entry_file", "", "Path to CSV of entries to compare")
	leafdataFile := flag.String("leafdata_file", "", "Path to output CSV of mismatched leafdata")
	logURI := flag.String("log_uri", "https://oak.ct.letsencrypt.org/2022/", "CT log base URI")
	numWorkers := flag.Int("num_workers", 2, "Number of concurrent workers")
	flag.Parse()

	// Open the files so we can bail out early if that fails.
	infile, err := os.Open(*entryFile)
	if err != nil {
		log.Fatal(err)
	}

	outfile, err := os.Create(*leafdataFile)
	if err != nil {
		log.Fatal(err)
	}

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

	// Kick off a worker which reads lines from the CSV file and sends them to a
	// channel for other workers to process.
	r := csv.NewReader(infile)
	r.FieldsPerRecord = 4
	r.TrimLeadingSpace = true
	candidates := make(chan candidateEntry)
	go func() {
		for {
			e, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				log.Fatal(err)
			}

			c, err := parseCandidate(e)
			if err != nil {
				log.Fatal(err)
			}
			candidates <- c
		}
		close(candidates)
	}()

	// Kick off workers that read from the entries channel and query the given
	// log for the same entry.
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

	// Workers finish out of order, so a single collector buffers mismatches in
	// a heap and the output file is written by index once everything is in.
	found := make(chan mismatch)
	results := minheap.NewOrderable[mismatch]()
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for m := range found {
			results.Add(m)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < *numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bo := newBackoff()
			for c := range candidates {
				entry, err := fetchEntry(ctx, logClient, bo, c.Index)
				if err != nil {
					log.Fatal(err)
				}

				m, ok, err := checkEntry(c, entry)
				if err != nil {
					log.Fatal(err)
				}
				if ok {
					found <- m
				}
			}
		}()
	}

	wg.Wait()
	close(found)
	<-collected

	if err := writeMismatches(outfile, results); err != nil {
		log.Fatal(err)
	}
	if err := outfile.Close(); err != nil {
		log.Fatal(err)
	}
}
