package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/resilio/fetch/classify"
	"github.com/vietddude/resilio/fetch/retry"
)

func testConfig(maxRetries int) Config {
	return Config{
		Timeout: 2 * time.Second,
		Retry: retry.Policy{
			MaxRetries:  maxRetries,
			BaseDelay:   time.Millisecond,
			MaxBackoff:  10 * time.Millisecond,
			Exponential: true,
		},
		BreakerThreshold: 5,
		BreakerRecovery:  time.Minute,
		BlacklistTTL:     time.Minute,
		MaxContentLength: 1 << 20,
		MaxConcurrent:    4,
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	e := NewEngine(testConfig(3))
	out := e.Fetch(context.Background(), srv.URL, http.MethodGet)

	if !out.Success {
		t.Fatalf("Fetch failed: %s", out.ErrorMessage)
	}
	if out.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", out.StatusCode)
	}
	if string(out.Body) != "hello" {
		t.Errorf("Body = %q, want %q", out.Body, "hello")
	}
	if out.Headers.Get("X-Test") != "yes" {
		t.Errorf("Headers missing X-Test")
	}
	if out.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", out.RetryCount)
	}
}

func TestFetchClientErrorNeverRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewEngine(testConfig(3))
	out := e.Fetch(context.Background(), srv.URL, http.MethodGet)

	if out.Success {
		t.Fatal("Fetch succeeded, want failure")
	}
	if out.ErrorKind != classify.KindClient {
		t.Errorf("ErrorKind = %v, want client_error", out.ErrorKind)
	}
	if out.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", out.RetryCount)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestFetchServerErrorRetriesCapped(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewEngine(testConfig(5))
	out := e.Fetch(context.Background(), srv.URL, http.MethodGet)

	if out.Success {
		t.Fatal("Fetch succeeded, want failure")
	}
	if out.ErrorKind != classify.KindServer {
		t.Errorf("ErrorKind = %v, want server_error", out.ErrorKind)
	}
	// Server errors cap at two retries regardless of MaxRetries.
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
	if out.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", out.RetryCount)
	}
}

func TestFetchTimeoutRetries(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig(1)
	cfg.Timeout = 30 * time.Millisecond
	e := NewEngine(cfg)
	out := e.Fetch(context.Background(), srv.URL, http.MethodGet)

	if out.Success {
		t.Fatal("Fetch succeeded, want timeout failure")
	}
	if out.ErrorKind != classify.KindTimeout {
		t.Errorf("ErrorKind = %v, want timeout", out.ErrorKind)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestFetchOversizeBodyIsTerminal(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	cfg := testConfig(3)
	cfg.MaxContentLength = 10
	e := NewEngine(cfg)
	out := e.Fetch(context.Background(), srv.URL, http.MethodGet)

	if out.Success {
		t.Fatal("Fetch succeeded, want oversize failure")
	}
	if !strings.Contains(out.ErrorMessage, "exceeds") {
		t.Errorf("ErrorMessage = %q, want content-limit diagnostic", out.ErrorMessage)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 (oversize is never retried)", got)
	}
}

func TestFetchManyPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ok") {
			w.Write([]byte("ok"))
			return
		}
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	urls := []string{
		srv.URL + "/ok/1",
		srv.URL + "/missing/1",
		srv.URL + "/ok/2",
		srv.URL + "/missing/2",
	}

	e := NewEngine(testConfig(1))
	outcomes := e.FetchMany(context.Background(), urls, 2)

	if len(outcomes) != 4 {
		t.Fatalf("len(outcomes) = %d, want 4", len(outcomes))
	}
	wantSuccess := []bool{true, false, true, false}
	for i, out := range outcomes {
		if out.Resource != urls[i] {
			t.Errorf("outcomes[%d].Resource = %s, want %s", i, out.Resource, urls[i])
		}
		if out.Success != wantSuccess[i] {
			t.Errorf("outcomes[%d].Success = %v, want %v", i, out.Success, wantSuccess[i])
		}
	}
}

func TestFetchWithFallback(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fallback data"))
	}))
	defer good.Close()

	e := NewEngine(testConfig(0))
	out := e.FetchWithFallback(context.Background(), bad.URL, []string{good.URL})

	if !out.Success {
		t.Fatalf("FetchWithFallback failed: %s", out.ErrorMessage)
	}
	if out.Resource != good.URL {
		t.Errorf("Resource = %s, want fallback %s", out.Resource, good.URL)
	}
}

func TestFetchWithFallbackAllFailReturnsLast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	primary := srv.URL + "/a"
	last := srv.URL + "/c"

	e := NewEngine(testConfig(0))
	out := e.FetchWithFallback(context.Background(), primary, []string{srv.URL + "/b", last})

	if out.Success {
		t.Fatal("FetchWithFallback succeeded, want failure")
	}
	if out.Resource != last {
		t.Errorf("Resource = %s, want last fallback %s", out.Resource, last)
	}
}

func TestBreakerOpenRejectsFetch(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(0)
	cfg.BreakerThreshold = 1
	e := NewEngine(cfg)

	e.Fetch(context.Background(), srv.URL, http.MethodGet)
	out := e.Fetch(context.Background(), srv.URL, http.MethodGet)

	if out.Success {
		t.Fatal("second Fetch succeeded, want breaker rejection")
	}
	if !strings.Contains(out.ErrorMessage, "circuit breaker open") {
		t.Errorf("ErrorMessage = %q, want breaker rejection", out.ErrorMessage)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}

	stats := e.Stats()
	if stats.BreakerTrips != 1 {
		t.Errorf("BreakerTrips = %d, want 1", stats.BreakerTrips)
	}
}

func TestBlacklistAfterExhaustion(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(2)
	cfg.BreakerThreshold = 1
	e := NewEngine(cfg)

	// Three failed attempts push the failure count to 2x the threshold.
	e.Fetch(context.Background(), srv.URL, http.MethodGet)
	if !e.Blacklist().Contains(ResourceKey(srv.URL)) {
		t.Fatal("resource not blacklisted after exhaustion")
	}

	before := hits.Load()
	out := e.Fetch(context.Background(), srv.URL, http.MethodGet)
	if out.Success {
		t.Fatal("Fetch of blacklisted resource succeeded")
	}
	if !strings.Contains(out.ErrorMessage, "blacklisted") {
		t.Errorf("ErrorMessage = %q, want blacklist rejection", out.ErrorMessage)
	}
	if got := hits.Load(); got != before {
		t.Errorf("server hits grew from %d to %d, want no new requests", before, got)
	}
}

func TestStatsIdempotentRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := NewEngine(testConfig(1))
	e.Fetch(context.Background(), srv.URL, http.MethodGet)

	s1 := e.Stats()
	s2 := e.Stats()
	if s1 != s2 {
		t.Errorf("Stats() not idempotent: %+v vs %+v", s1, s2)
	}
	if s1.Total != 1 || s1.Success != 1 {
		t.Errorf("Stats = %+v, want Total=1 Success=1", s1)
	}
	if s1.SuccessRate != 1.0 {
		t.Errorf("SuccessRate = %f, want 1.0", s1.SuccessRate)
	}
}

func TestStatsZeroTotal(t *testing.T) {
	e := NewEngine(testConfig(1))
	if got := e.Stats().SuccessRate; got != 0 {
		t.Errorf("SuccessRate with no fetches = %f, want 0", got)
	}
}
