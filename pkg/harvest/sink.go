package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/closetloop/catalog-harvester/pkg/catalog"
	"github.com/closetloop/catalog-harvester/pkg/stats"
	"github.com/google/uuid"
)

// Sink receives the finished run. The pipeline itself never touches
// disk; persistence is an external collaborator behind this boundary.
type Sink interface {
	Write(ctx context.Context, result *Result) error
}

// Metadata is the optional envelope written alongside the items,
// consumed by downstream tooling.
type Metadata struct {
	RunID           string         `json:"run_id"`
	Timestamp       string         `json:"timestamp"`
	DurationSeconds float64        `json:"duration_seconds"`
	Platform        string         `json:"platform"`
	BaseURL         string         `json:"base_url"`
	Statistics      stats.Snapshot `json:"statistics"`
}

// Document is the on-disk contract: {"items": [...]} plus an optional
// scraping_metadata envelope.
type Document struct {
	Metadata *Metadata                  `json:"scraping_metadata,omitempty"`
	Items    []catalog.CanonicalProduct `json:"items"`
}

// JSONFileSink writes the output document to a file, creating parent
// directories as needed.
type JSONFileSink struct {
	Path            string
	IncludeMetadata bool
	Platform        string
	BaseURL         string
}

// Write persists the run result. A cancelled context aborts before
// anything touches disk.
func (s *JSONFileSink) Write(ctx context.Context, result *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := Document{Items: result.Products}
	if doc.Items == nil {
		doc.Items = []catalog.CanonicalProduct{}
	}
	if s.IncludeMetadata {
		doc.Metadata = &Metadata{
			RunID:           uuid.NewString(),
			Timestamp:       result.StartedAt.Add(result.Duration).Format("2006-01-02T15:04:05Z07:00"),
			DurationSeconds: result.Duration.Seconds(),
			Platform:        s.Platform,
			BaseURL:         s.BaseURL,
			Statistics:      result.Stats,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output document: %w", err)
	}

	if dir := filepath.Dir(s.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return nil
}
