package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/closetloop/catalog-harvester/pkg/stats"
)

// testConfig returns a config with millisecond backoffs so retry tests
// stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialBackoff = 1 * time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestFetchJSON_Success(t *testing.T) {
	requestCount := 0
	userAgent := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		userAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"products":[{"id":1}]}`))
	}))
	defer server.Close()

	f := New(testConfig(), stats.NewRecorder())

	var out struct {
		Products []struct {
			ID int64 `json:"id"`
		} `json:"products"`
	}
	params := url.Values{"limit": {"250"}, "page": {"1"}}
	if err := f.FetchJSON(context.Background(), server.URL+"/products.json", params, &out); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}

	if requestCount != 1 {
		t.Errorf("request count = %d, want 1", requestCount)
	}
	if len(out.Products) != 1 || out.Products[0].ID != 1 {
		t.Errorf("unexpected decode result: %+v", out)
	}
	if userAgent != "catalog-harvester/1.0" {
		t.Errorf("User-Agent = %q, want default", userAgent)
	}
}

func TestFetchJSON_RetryCeiling(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 3
	f := New(cfg, stats.NewRecorder())

	var out struct{}
	err := f.FetchJSON(context.Background(), server.URL, nil, &out)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("expected ErrRetryExhausted, got %v", err)
	}
	// 3 retries means 4 total requests.
	if requestCount != 4 {
		t.Errorf("request count = %d, want 4", requestCount)
	}

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if ferr.Class != ErrorClassServer || ferr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("FetchError = class %q status %d, want server/503", ferr.Class, ferr.StatusCode)
	}
}

func TestFetchJSON_NoRetryOnClientError(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(testConfig(), stats.NewRecorder())

	var out struct{}
	err := f.FetchJSON(context.Background(), server.URL, nil, &out)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if ferr.Class != ErrorClassClient || ferr.StatusCode != http.StatusNotFound {
		t.Errorf("FetchError = class %q status %d, want client/404", ferr.Class, ferr.StatusCode)
	}
	if requestCount != 1 {
		t.Errorf("request count = %d, want 1 (no retry for 4xx)", requestCount)
	}
}

func TestFetchJSON_RetryThenSucceed(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := New(testConfig(), stats.NewRecorder())

	var out struct {
		OK bool `json:"ok"`
	}
	if err := f.FetchJSON(context.Background(), server.URL, nil, &out); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}
	if requestCount != 3 {
		t.Errorf("request count = %d, want 3", requestCount)
	}
	if !out.OK {
		t.Error("body not decoded after retry")
	}
}

func TestFetchJSON_ParseErrorNotRetried(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	f := New(testConfig(), stats.NewRecorder())

	var out struct{}
	err := f.FetchJSON(context.Background(), server.URL, nil, &out)

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if requestCount != 1 {
		t.Errorf("request count = %d, want 1", requestCount)
	}
}

func TestFetchJSON_StatsCounters(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	recorder := stats.NewRecorder()
	f := New(testConfig(), recorder)

	var out struct{}
	if err := f.FetchJSON(context.Background(), server.URL, nil, &out); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}

	snap := recorder.Snapshot()
	if snap.RequestsFailed != 1 || snap.RequestsSucceeded != 1 {
		t.Errorf("requests = %d failed / %d succeeded, want 1/1",
			snap.RequestsFailed, snap.RequestsSucceeded)
	}
}

func TestFetchJSON_CircuitOpen(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	breaker := NewBreaker(2, time.Hour)
	breaker.Failure()
	breaker.Failure()

	cfg := testConfig()
	cfg.Breaker = breaker
	f := New(cfg, stats.NewRecorder())

	var out struct{}
	err := f.FetchJSON(context.Background(), server.URL, nil, &out)

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if requestCount != 0 {
		t.Errorf("request count = %d, want 0 (open circuit fails fast)", requestCount)
	}
}

func TestFetchJSON_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.InitialBackoff = 1 * time.Second
	f := New(cfg, stats.NewRecorder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out struct{}
	err := f.FetchJSON(ctx, server.URL, nil, &out)
	if err == nil {
		t.Fatal("expected error after cancellation, got nil")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusBadGateway, ErrorClassServer},
		{http.StatusServiceUnavailable, ErrorClassServer},
		{http.StatusGatewayTimeout, ErrorClassServer},
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusUnauthorized, ErrorClassClient},
		{http.StatusNotImplemented, ErrorClassClient},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.expected {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	headers := http.Header{}
	if d := parseRetryAfter(headers); d != 0 {
		t.Errorf("missing header = %v, want 0", d)
	}

	headers.Set("Retry-After", "5")
	if d := parseRetryAfter(headers); d != 5*time.Second {
		t.Errorf("Retry-After 5 = %v, want 5s", d)
	}

	headers.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	if d := parseRetryAfter(headers); d != 0 {
		t.Errorf("HTTP-date value = %v, want 0", d)
	}
}
