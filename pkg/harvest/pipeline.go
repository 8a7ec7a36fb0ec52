package harvest

import (
	"context"
	"time"

	"github.com/closetloop/catalog-harvester/pkg/catalog"
	"github.com/closetloop/catalog-harvester/pkg/stats"
	"github.com/closetloop/catalog-harvester/pkg/transform"
	"github.com/closetloop/catalog-harvester/pkg/validate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of one harvest run. Success means the run
// produced at least one valid record and not every endpoint failed
// fatally; mapping that to a process exit status is the caller's job.
type Result struct {
	Success   bool
	Products  []catalog.CanonicalProduct
	Stats     stats.Snapshot
	StartedAt time.Time
	Duration  time.Duration
}

// Pipeline runs the full harvest: aggregate, transform, validate.
type Pipeline struct {
	cfg         Config
	recorder    *stats.Recorder
	transformer *transform.Transformer
	logger      zerolog.Logger
}

// NewPipeline creates a Pipeline with its own statistics recorder.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Pipeline{
		cfg:      cfg,
		recorder: stats.NewRecorder(),
		transformer: transform.New(transform.Config{
			Platform: cfg.Platform,
			BaseURL:  cfg.BaseURL,
			Rules:    cfg.Rules,
		}),
		logger: log.With().Str("component", "pipeline").Logger(),
	}
}

// Run harvests all endpoints and returns the validated products plus a
// statistics snapshot. It always returns a Result; per-record and
// per-endpoint failures are recorded, not raised. No ordering is
// guaranteed across the output set once endpoints merge concurrently.
func (p *Pipeline) Run(ctx context.Context, endpoints []Endpoint) *Result {
	start := time.Now()

	p.logger.Info().
		Str("base_url", p.cfg.BaseURL).
		Int("endpoints", len(endpoints)).
		Int("workers", p.cfg.Workers).
		Msg("Starting harvest")

	index := NewAggregator(p.cfg, p.recorder).Aggregate(ctx, endpoints)

	products := make([]catalog.CanonicalProduct, 0, len(index))
	for _, raw := range index {
		canonical := p.transformer.Transform(raw)
		if err := validate.Validate(canonical); err != nil {
			p.recorder.ProductFailed(raw.Key(), err.Error())
			p.logger.Debug().
				Str("product_id", raw.Key()).
				Str("reason", err.Error()).
				Msg("Product rejected")
			continue
		}
		p.recorder.ProductTransformed()
		products = append(products, canonical)
	}

	snapshot := p.recorder.Snapshot()
	success := len(products) > 0 &&
		(len(endpoints) == 0 || snapshot.EndpointsFailed < len(endpoints))

	duration := time.Since(start)
	p.logger.Info().
		Bool("success", success).
		Int("products", len(products)).
		Int("pages_fetched", snapshot.PagesFetched).
		Int("products_fetched", snapshot.ProductsFetched).
		Int("products_failed", snapshot.ProductsFailed).
		Int("endpoints_failed", snapshot.EndpointsFailed).
		Float64("success_rate", snapshot.SuccessRate).
		Dur("duration", duration).
		Msg("Harvest complete")

	return &Result{
		Success:   success,
		Products:  products,
		Stats:     snapshot,
		StartedAt: start,
		Duration:  duration,
	}
}
