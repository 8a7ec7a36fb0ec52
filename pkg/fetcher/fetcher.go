// Package fetcher performs single HTTP GETs against a storefront
// endpoint with timeout, retry and exponential backoff.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/closetloop/catalog-harvester/pkg/cache"
	"github.com/closetloop/catalog-harvester/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for fetch operations.
var (
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_fetch_duration_seconds",
		Help:    "Fetch duration in seconds, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_fetch_errors_total",
		Help: "Fetch errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_retries_total",
		Help: "Retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_retry_exhausted_total",
		Help: "Fetches that exhausted all retry attempts, by error class",
	}, []string{"error_class"})
)

// Config holds the fetcher configuration.
type Config struct {
	// UserAgent identifies the harvester to the storefront.
	UserAgent string

	// Timeout applies per attempt, not across retries.
	Timeout time.Duration

	// MaxRetries is the number of retries after the initial request,
	// so MaxRetries=3 means at most 4 requests per fetch.
	MaxRetries int

	// InitialBackoff is the first retry delay; it doubles per attempt
	// up to MaxBackoff, with ±20% jitter.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Cache is an optional Redis page cache consulted before the
	// network.
	Cache *cache.Manager

	// Breaker is an optional circuit breaker. An open circuit fails
	// fast without issuing a request.
	Breaker *Breaker
}

// DefaultConfig returns safe defaults for a polite catalog harvest.
func DefaultConfig() Config {
	return Config{
		UserAgent:      "catalog-harvester/1.0",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Fetcher performs GET requests against storefront endpoints. Each
// Fetcher owns its HTTP client; concurrent workers must construct
// their own Fetcher rather than share one.
type Fetcher struct {
	httpClient *http.Client
	cfg        Config
	recorder   *stats.Recorder
	logger     zerolog.Logger
}

// New creates a Fetcher with its own HTTP client.
func New(cfg Config, recorder *stats.Recorder) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "catalog-harvester/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if recorder == nil {
		recorder = stats.NewRecorder()
	}

	return &Fetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		recorder:   recorder,
		logger:     log.With().Str("component", "fetcher").Logger(),
	}
}

// FetchJSON fetches endpoint with the given query parameters and
// decodes the response body into out. Transient failures (connection
// errors, timeouts, HTTP 429/500/502/503/504) are retried with
// exponential backoff; everything the caller receives is a typed
// *FetchError or *ParseError.
func (f *Fetcher) FetchJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	requestURL := endpoint
	if len(params) > 0 {
		requestURL = endpoint + "?" + params.Encode()
	}

	if f.cfg.Breaker != nil && !f.cfg.Breaker.Allow() {
		f.recorder.RequestFailed()
		fetchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return &FetchError{URL: requestURL, Class: ErrorClassNetwork, Err: ErrCircuitOpen}
	}

	if f.cfg.Cache != nil {
		body, err := f.cfg.Cache.Get(ctx, requestURL)
		if err == nil {
			f.logger.Debug().Str("url", requestURL).Msg("Page cache hit")
			return decode(requestURL, body, out)
		}
		if err != cache.ErrCacheMiss {
			f.logger.Warn().Err(err).Str("url", requestURL).Msg("Page cache get error")
		}
	}

	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
	}()

	backoff := f.cfg.InitialBackoff
	attempts := f.cfg.MaxRetries + 1
	var lastErr *FetchError

	for attempt := 1; attempt <= attempts; attempt++ {
		body, retryAfter, ferr := f.attempt(ctx, requestURL)
		if ferr == nil {
			f.recorder.RequestSucceeded()
			if f.cfg.Breaker != nil {
				f.cfg.Breaker.Success()
			}
			if attempt > 1 {
				f.logger.Info().
					Str("url", requestURL).
					Int("attempt", attempt).
					Msg("Fetch succeeded after retry")
			}
			if f.cfg.Cache != nil {
				if err := f.cfg.Cache.Set(ctx, requestURL, body); err != nil {
					f.logger.Warn().Err(err).Str("url", requestURL).Msg("Page cache set error")
				}
			}
			return decode(requestURL, body, out)
		}

		f.recorder.RequestFailed()
		if f.cfg.Breaker != nil {
			f.cfg.Breaker.Failure()
		}
		fetchErrorsTotal.WithLabelValues(string(ferr.Class)).Inc()
		lastErr = ferr

		if !ferr.Retryable() {
			f.logger.Warn().
				Str("url", requestURL).
				Int("status", ferr.StatusCode).
				Str("error_class", string(ferr.Class)).
				Msg("Fetch failed with non-retryable error")
			return ferr
		}

		if attempt >= attempts {
			break
		}

		retriesTotal.WithLabelValues(string(ferr.Class)).Inc()

		// ±20% jitter; a Retry-After hint overrides a shorter backoff.
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		if retryAfter > wait {
			wait = retryAfter
		}

		f.logger.Debug().
			Str("url", requestURL).
			Int("attempt", attempt).
			Str("error_class", string(ferr.Class)).
			Dur("backoff", wait).
			Msg("Retrying fetch after backoff")

		select {
		case <-ctx.Done():
			return &FetchError{URL: requestURL, Class: ErrorClassNetwork, Err: ctx.Err()}
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > f.cfg.MaxBackoff {
			backoff = f.cfg.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastErr.Class)).Inc()
	f.logger.Warn().
		Str("url", requestURL).
		Int("attempts", attempts).
		Str("error_class", string(lastErr.Class)).
		Msg("Retry attempts exhausted")

	return &FetchError{
		URL:        requestURL,
		StatusCode: lastErr.StatusCode,
		Class:      lastErr.Class,
		Err:        fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempts, lastErr),
	}
}

// attempt performs one request and returns the body on success, or a
// classified error and an optional Retry-After hint.
func (f *Fetcher) attempt(ctx context.Context, requestURL string) ([]byte, time.Duration, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, &FetchError{URL: requestURL, Class: ErrorClassClient, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, &FetchError{URL: requestURL, Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, parseRetryAfter(resp.Header), &FetchError{
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &FetchError{URL: requestURL, Class: ErrorClassNetwork, Err: err}
	}
	return body, 0, nil
}

// parseRetryAfter reads a delay-seconds Retry-After header. HTTP-date
// values are ignored; the storefront only ever sends seconds.
func parseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func decode(requestURL string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{URL: requestURL, Err: err}
	}
	return nil
}
