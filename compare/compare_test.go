package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aarongable/minheap"
	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/client"
	"github.com/google/certificate-transparency-go/jsonclient"
	"github.com/google/certificate-transparency-go/tls"
	"github.com/google/trillian/client/backoff"
)

func TestParseCandidate(t *testing.T) {
	c, err := parseCandidate([]string{"42", "1650000000000", "ignored", "123456789012345678901234567890"})
	if err != nil {
		t.Fatalf("parseCandidate: %v", err)
	}
	if c.Index != 42 || c.Timestamp != 1650000000000 {
		t.Errorf("got %+v", c)
	}
	if got := c.Serial.String(); got != "123456789012345678901234567890" {
		t.Errorf("serial = %s", got)
	}

	bad := [][]string{
		{"x", "1", "", "1"},
		{"1", "-1", "", "1"},
		{"1", "1", "", "0x1f"},
	}
	for _, e := range bad {
		if _, err := parseCandidate(e); err == nil {
			t.Errorf("parseCandidate(%q) succeeded", e)
		}
	}
	if _, err := parseCandidate(bad[0]); !errors.Is(err, strconv.ErrSyntax) {
		t.Errorf("parseCandidate(%q) = %v, want strconv.ErrSyntax", bad[0], err)
	}
}

func leaf(ts uint64) ct.LogEntry {
	return ct.LogEntry{
		Leaf: ct.MerkleTreeLeaf{
			Version:  ct.V1,
			LeafType: ct.TimestampedEntryLeafType,
			TimestampedEntry: &ct.TimestampedEntry{
				Timestamp: ts,
				EntryType: ct.X509LogEntryType,
				X509Entry: &ct.ASN1Cert{Data: []byte{0x30, 0x00}},
			},
		},
	}
}

func TestCheckEntry(t *testing.T) {
	c := candidateEntry{Index: 7, Timestamp: 1000}
	if _, ok, err := checkEntry(c, leaf(1000)); ok || err != nil {
		t.Errorf("matching timestamps: ok = %v, err = %v", ok, err)
	}
	m, ok, err := checkEntry(c, leaf(2000))
	if err != nil || !ok {
		t.Fatalf("mismatched timestamps: ok = %v, err = %v", ok, err)
	}
	if m.index != 7 || len(m.leafInput) == 0 {
		t.Errorf("got %+v", m)
	}
}

func TestWriteMismatchesInIndexOrder(t *testing.T) {
	results := minheap.NewOrderable(
		mismatch{index: 30, leafInput: []byte{0x03}},
		mismatch{index: 10, leafInput: []byte{0x01}},
		mismatch{index: 20, leafInput: []byte{0x02}},
	)
	var buf bytes.Buffer
	if err := writeMismatches(&buf, results); err != nil {
		t.Fatalf("writeMismatches: %v", err)
	}
	if got, want := buf.String(), "10,01\n20,02\n30,03\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !results.IsEmpty() {
		t.Errorf("results not drained: %v", results)
	}
}

func TestRetriable(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		retry bool
	}{
		{"nil", nil, false},
		{"unavailable", &jsonclient.RspError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("503")}, true},
		{"rate limited", &jsonclient.RspError{StatusCode: http.StatusTooManyRequests, Err: errors.New("429")}, true},
		{"not found", &jsonclient.RspError{StatusCode: http.StatusNotFound, Err: errors.New("404")}, false},
		{"transport", &url.Error{Op: "Get", URL: "http://log", Err: errors.New("connection refused")}, true},
		{"wrapped transport", fmt.Errorf("fetching: %w", &url.Error{Op: "Get", URL: "http://log", Err: errors.New("reset")}), true},
		{"other", errors.New("bad json"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := retriable(tc.err)
			_, isRetry := got.(backoff.RetriableError)
			if isRetry != tc.retry {
				t.Errorf("retriable(%v) = %#v, want retriable = %v", tc.err, got, tc.retry)
			}
			if !tc.retry && got != tc.err {
				t.Errorf("retriable(%v) changed a permanent error to %v", tc.err, got)
			}
		})
	}
}

// entriesResponse builds a get-entries body holding one self-signed
// certificate entry with the given timestamp.
func entriesResponse(t *testing.T, ts uint64) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.com"},
		NotBefore:    time.Unix(1600000000, 0),
		NotAfter:     time.Unix(1700000000, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	leafInput, err := tls.Marshal(ct.MerkleTreeLeaf{
		Version:  ct.V1,
		LeafType: ct.TimestampedEntryLeafType,
		TimestampedEntry: &ct.TimestampedEntry{
			Timestamp: ts,
			EntryType: ct.X509LogEntryType,
			X509Entry: &ct.ASN1Cert{Data: der},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	extraData, err := tls.Marshal(ct.CertificateChain{})
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(ct.GetEntriesResponse{
		Entries: []ct.LeafEntry{{LeafInput: leafInput, ExtraData: extraData}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

// logServer answers get-entries with the given status codes in turn, then
// with body once they run out.
func logServer(t *testing.T, body []byte, statuses ...int) (*client.LogClient, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&hits, 1))
		if n <= len(statuses) {
			http.Error(w, "try later", statuses[n-1])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	logClient, err := client.New(srv.URL, srv.Client(), jsonclient.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return logClient, &hits
}

func testBackoff() *backoff.Backoff {
	return &backoff.Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func TestFetchEntryRetriesUnavailable(t *testing.T) {
	logClient, hits := logServer(t, entriesResponse(t, 1234), http.StatusServiceUnavailable, http.StatusTooManyRequests)

	entry, err := fetchEntry(context.Background(), logClient, testBackoff(), 5)
	if err != nil {
		t.Fatalf("fetchEntry: %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
	if ts := entry.Leaf.TimestampedEntry.Timestamp; ts != 1234 {
		t.Errorf("timestamp = %d, want 1234", ts)
	}
}

func TestFetchEntryStopsOnPermanentError(t *testing.T) {
	logClient, hits := logServer(t, nil, http.StatusBadRequest)

	if _, err := fetchEntry(context.Background(), logClient, testBackoff(), 5); err == nil {
		t.Fatal("fetchEntry succeeded against a 400")
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestFetchEntryGivesUpWithContext(t *testing.T) {
	statuses := make([]int, 1000)
	for i := range statuses {
		statuses[i] = http.StatusServiceUnavailable
	}
	logClient, hits := logServer(t, nil, statuses...)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := fetchEntry(ctx, logClient, testBackoff(), 5); err == nil {
		t.Fatal("fetchEntry succeeded against a failing log")
	}
	if got := atomic.LoadInt32(hits); got < 2 {
		t.Errorf("server hits = %d, want retries", got)
	}
}
