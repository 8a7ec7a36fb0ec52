// Package cache provides an optional Redis-backed page cache for the
// fetcher. The storefront API sends no cache headers, so entries carry
// a fixed TTL instead of an upstream Expires/ETag pair. The pipeline
// runs fine without a cache; it only speeds up repeated runs against
// the same catalog.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the requested page is not cached.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "harvester:page:"

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_cache_hits_total",
		Help: "Page cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_cache_misses_total",
		Help: "Page cache misses",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_cache_errors_total",
		Help: "Page cache operation errors",
	}, []string{"operation"})
)

// Manager handles page caching with a Redis backend.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a cache manager. The TTL applies to every stored
// page.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get retrieves the cached body for a request URL. Returns ErrCacheMiss
// if the key does not exist.
func (m *Manager) Get(ctx context.Context, url string) ([]byte, error) {
	data, err := m.redis.Get(ctx, keyPrefix+url).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	cacheHits.Inc()
	return data, nil
}

// Set stores a response body under the request URL.
func (m *Manager) Set(ctx context.Context, url string, body []byte) error {
	if err := m.redis.Set(ctx, keyPrefix+url, body, m.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cached page.
func (m *Manager) Delete(ctx context.Context, url string) error {
	if err := m.redis.Del(ctx, keyPrefix+url).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
