// Package harvest fans pagination out across the storefront's catalog
// endpoints, merges the results into a deduplicated raw set and drives
// the transform and validation stages to a sink.
package harvest

import (
	"context"
	"errors"
	"sync"

	"github.com/closetloop/catalog-harvester/pkg/catalog"
	"github.com/closetloop/catalog-harvester/pkg/fetcher"
	"github.com/closetloop/catalog-harvester/pkg/paginate"
	"github.com/closetloop/catalog-harvester/pkg/stats"
	"github.com/closetloop/catalog-harvester/pkg/transform"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultWorkers bounds the number of endpoints paginated in parallel,
// which caps the outbound connection count against one storefront.
const DefaultWorkers = 5

// Endpoint is one paginated catalog slice: the main products listing
// or a named collection.
type Endpoint struct {
	Name string
	URL  string
}

// Endpoints builds the endpoint list for a store: the main catalog
// plus one endpoint per collection handle.
func Endpoints(baseURL string, collections []string) []Endpoint {
	out := []Endpoint{{Name: "main", URL: baseURL + "/products.json"}}
	for _, handle := range collections {
		if handle == "" {
			continue
		}
		out = append(out, Endpoint{
			Name: handle,
			URL:  baseURL + "/collections/" + handle + "/products.json",
		})
	}
	return out
}

// Config holds the harvest configuration.
type Config struct {
	// Platform is the constant stamped on every canonical record.
	Platform string

	// BaseURL is the store base URL.
	BaseURL string

	// Workers bounds concurrent endpoint pagination (default 5).
	Workers int

	// Fetcher configures the per-worker fetchers. The HTTP client
	// itself is never shared; each worker constructs its own.
	Fetcher fetcher.Config

	// Page configures pagination.
	Page paginate.Config

	// Rules are the transform keyword tables; zero value uses the
	// defaults.
	Rules transform.Rules
}

// DefaultConfig returns a polite default configuration for one store.
func DefaultConfig(platform, baseURL string) Config {
	return Config{
		Platform: platform,
		BaseURL:  baseURL,
		Workers:  DefaultWorkers,
		Fetcher:  fetcher.DefaultConfig(),
		Page:     paginate.DefaultConfig(),
	}
}

// Aggregator fans one paginator out per endpoint, bounded by a worker
// pool, and merges all pages into a single dedup index keyed by
// product id. First-seen wins: a product present in both the main
// catalog and a collection is transformed only once.
type Aggregator struct {
	cfg      Config
	recorder *stats.Recorder
	logger   zerolog.Logger
}

// NewAggregator creates an Aggregator sharing the given recorder.
func NewAggregator(cfg Config, recorder *stats.Recorder) *Aggregator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if recorder == nil {
		recorder = stats.NewRecorder()
	}
	return &Aggregator{
		cfg:      cfg,
		recorder: recorder,
		logger:   log.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate paginates every endpoint and returns the deduplicated raw
// product set. A fatal error on one endpoint is recorded and does not
// cancel the sibling workers; Aggregate returns once all workers have
// finished, successfully or not.
func (a *Aggregator) Aggregate(ctx context.Context, endpoints []Endpoint) map[string]catalog.RawProduct {
	index := make(map[string]catalog.RawProduct)
	var mu sync.Mutex

	jobs := make(chan Endpoint)
	var wg sync.WaitGroup

	workers := a.cfg.Workers
	if workers > len(endpoints) {
		workers = len(endpoints)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ep := range jobs {
				a.harvestEndpoint(ctx, ep, index, &mu)
			}
		}()
	}

	for _, ep := range endpoints {
		jobs <- ep
	}
	close(jobs)
	wg.Wait()

	a.logger.Info().
		Int("endpoints", len(endpoints)).
		Int("unique_products", len(index)).
		Msg("Aggregation complete")

	return index
}

// harvestEndpoint walks one endpoint and merges its pages into the
// shared index. Each page is merged before the next page is requested,
// so the walk never buffers more than one page.
func (a *Aggregator) harvestEndpoint(ctx context.Context, ep Endpoint, index map[string]catalog.RawProduct, mu *sync.Mutex) {
	// Workers own independent connection state; fetchers are built
	// here, not shared through the config.
	f := fetcher.New(a.cfg.Fetcher, a.recorder)
	p := paginate.New(f, a.cfg.Page, a.recorder)

	err := p.Walk(ctx, ep.URL, func(page int, products []catalog.RawProduct) error {
		mu.Lock()
		for _, raw := range products {
			key := raw.Key()
			if key == "" {
				continue
			}
			if _, seen := index[key]; !seen {
				index[key] = raw
			}
		}
		mu.Unlock()
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.logger.Debug().Str("endpoint", ep.Name).Msg("Endpoint harvest cancelled")
	default:
		a.recorder.EndpointFailed(ep.Name, err.Error())
		a.logger.Warn().
			Err(err).
			Str("endpoint", ep.Name).
			Msg("Endpoint harvest failed, keeping partial results")
	}
}
