// Package paginate walks a single paginated products endpoint
// sequentially, page by page, until the storefront reports exhaustion.
package paginate

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/closetloop/catalog-harvester/pkg/catalog"
	"github.com/closetloop/catalog-harvester/pkg/fetcher"
	"github.com/closetloop/catalog-harvester/pkg/stats"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxPageSize is the hard per-page item ceiling enforced by the
// storefront platform.
const MaxPageSize = 250

// Config holds paginator configuration.
type Config struct {
	// PageSize is the requested items per page, capped at MaxPageSize.
	PageSize int

	// Delay is the inter-request delay, paid once per page.
	Delay time.Duration
}

// DefaultConfig returns the platform maximum page size with a polite
// one second delay between pages.
func DefaultConfig() Config {
	return Config{
		PageSize: MaxPageSize,
		Delay:    1 * time.Second,
	}
}

// PageFunc receives each non-empty page before the next page is
// requested. Returning an error halts the walk.
type PageFunc func(page int, products []catalog.RawProduct) error

// Paginator drives a Fetcher across the sequential pages of one
// endpoint. Page fetches are strictly ordered; each request waits for
// the prior page's response. A walk is not restartable — a fresh call
// to Walk starts again from page 1.
type Paginator struct {
	fetcher  *fetcher.Fetcher
	cfg      Config
	recorder *stats.Recorder
	logger   zerolog.Logger
}

// New creates a Paginator. The page size is capped at MaxPageSize.
func New(f *fetcher.Fetcher, cfg Config, recorder *stats.Recorder) *Paginator {
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}
	if recorder == nil {
		recorder = stats.NewRecorder()
	}
	return &Paginator{
		fetcher:  f,
		cfg:      cfg,
		recorder: recorder,
		logger:   log.With().Str("component", "paginator").Logger(),
	}
}

// Walk fetches pages from endpoint starting at page 1 and hands each
// non-empty page to fn. Malformed records are recorded and skipped
// individually; the rest of their page survives. Walk stops cleanly on
// the first empty page and returns the fetch error when the endpoint
// fails fatally; it never retries with a different page number, which
// would mask real termination.
func (p *Paginator) Walk(ctx context.Context, endpoint string, fn PageFunc) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		params := url.Values{
			"limit": {strconv.Itoa(p.cfg.PageSize)},
			"page":  {strconv.Itoa(page)},
		}

		var body catalog.Page
		if err := p.fetcher.FetchJSON(ctx, endpoint, params, &body); err != nil {
			p.logger.Warn().
				Err(err).
				Str("endpoint", endpoint).
				Int("page", page).
				Msg("Pagination halted by fetch error")
			return err
		}

		if len(body.Products) == 0 {
			p.logger.Info().
				Str("endpoint", endpoint).
				Int("pages", page-1).
				Msg("Pagination exhausted")
			return nil
		}

		products, malformed := body.Decode()
		for _, rec := range malformed {
			p.recorder.ProductFailed(rec.ID, rec.Err.Error())
			p.logger.Warn().
				Err(rec.Err).
				Str("endpoint", endpoint).
				Int("page", page).
				Str("product_id", rec.ID).
				Msg("Skipping malformed record")
		}

		p.recorder.PageFetched(len(body.Products))
		p.logger.Debug().
			Str("endpoint", endpoint).
			Int("page", page).
			Int("products", len(products)).
			Int("malformed", len(malformed)).
			Msg("Fetched page")

		if err := fn(page, products); err != nil {
			return err
		}

		if p.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.Delay):
			}
		}
	}
}
