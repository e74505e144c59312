package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(attempts int) *Client {
	return NewClient(Config{
		SigningSecret:  "test-secret",
		Timeout:        2 * time.Second,
		MaxAttempts:    attempts,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	})
}

func TestSendAddsSigningHeaders(t *testing.T) {
	var (
		gotSig   string
		gotTS    string
		gotEvt   string
		gotMedia string
		gotBody  []byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotTS = r.Header.Get(HeaderTimestamp)
		gotEvt = r.Header.Get(HeaderEvent)
		gotMedia = r.Header.Get(HeaderMediaID)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(1).Send(context.Background(), srv.URL, Delivery{
		Event:   EventMediaOptimized,
		MediaID: "media-1",
		Data:    map[string]any{"optimized_key": "optimized/media-1.webp"},
	})
	if err != nil {
		t.Fatalf("send returned error: %v", err)
	}

	if gotTS == "" {
		t.Fatal("expected timestamp header")
	}
	if !Verify("test-secret", gotTS, gotBody, gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	if Verify("other-secret", gotTS, gotBody, gotSig) {
		t.Fatal("signature verified with the wrong secret")
	}
	if gotEvt != EventMediaOptimized {
		t.Fatalf("expected event header %s, got %q", EventMediaOptimized, gotEvt)
	}
	if gotMedia != "media-1" {
		t.Fatalf("expected media header media-1, got %q", gotMedia)
	}

	var delivery Delivery
	if err := json.Unmarshal(gotBody, &delivery); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if delivery.OccurredAt.IsZero() || delivery.MediaID != "media-1" {
		t.Fatalf("unexpected delivery %+v", delivery)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := testClient(3).Send(context.Background(), srv.URL, Delivery{Event: EventMediaFailed, MediaID: "m"}); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	err := testClient(5).Send(context.Background(), srv.URL, Delivery{Event: EventMediaSkipped, MediaID: "m"})
	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusGone {
		t.Fatalf("expected StatusError 410, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSendIgnoresEmptyEndpoint(t *testing.T) {
	if err := testClient(1).Send(context.Background(), "  ", Delivery{Event: EventMediaOptimized}); err != nil {
		t.Fatalf("expected nil for empty endpoint, got %v", err)
	}
}

func TestSendRetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			// Capped to the client's max backoff.
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	started := time.Now()
	if err := testClient(2).Send(context.Background(), srv.URL, Delivery{Event: EventMediaOptimized, MediaID: "m"}); err != nil {
		t.Fatalf("expected success after 429, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("retry-after was not capped, took %s", elapsed)
	}
}

func TestSendStopsWhenContextDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{MaxAttempts: 5, InitialBackoff: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := client.Send(ctx, srv.URL, Delivery{Event: EventMediaFailed, MediaID: "m"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := retryPolicy{attempts: 5, first: 100 * time.Millisecond, ceiling: 350 * time.Millisecond}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Fatalf("delay(%d) = %s, want %s", i+1, got, w)
		}
	}
}
