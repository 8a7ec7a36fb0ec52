// Package transform maps raw storefront records into the canonical
// product schema using deterministic keyword heuristics. Transform is
// a pure function: no I/O, no blocking, no shared state.
package transform

import (
	"strconv"
	"strings"

	"github.com/closetloop/catalog-harvester/pkg/catalog"
)

// Config holds the transformer configuration.
type Config struct {
	// Platform is the constant platform name stamped on every record.
	Platform string

	// BaseURL is the store base used to build platform URLs.
	BaseURL string

	// Rules are the keyword tables; zero value falls back to
	// DefaultRules.
	Rules Rules
}

// Transformer converts RawProduct records into CanonicalProduct
// records. Safe for concurrent use; it holds only immutable
// configuration.
type Transformer struct {
	cfg Config
}

// New creates a Transformer, filling in default rule tables where the
// config leaves them empty.
func New(cfg Config) *Transformer {
	defaults := DefaultRules()
	if len(cfg.Rules.BrandKeywords) == 0 {
		cfg.Rules.BrandKeywords = defaults.BrandKeywords
	}
	if len(cfg.Rules.Categories) == 0 {
		cfg.Rules.Categories = defaults.Categories
	}
	if len(cfg.Rules.WomensKeywords) == 0 {
		cfg.Rules.WomensKeywords = defaults.WomensKeywords
	}
	if len(cfg.Rules.MensKeywords) == 0 {
		cfg.Rules.MensKeywords = defaults.MensKeywords
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Transformer{cfg: cfg}
}

// Transform maps one raw record to the canonical schema. It never
// fails: fields that cannot be derived are left at their rejectable
// zero values and the validator decides the record's fate.
func (t *Transformer) Transform(raw catalog.RawProduct) catalog.CanonicalProduct {
	tags := normalizeTags(raw.Tags)

	images := make([]string, 0, len(raw.Images))
	for _, img := range raw.Images {
		if img.Src != "" {
			images = append(images, img.Src)
		}
	}
	primaryImage := ""
	if len(images) > 0 {
		primaryImage = images[0]
	}

	platformURL := ""
	if raw.Handle != "" {
		platformURL = t.cfg.BaseURL + "/products/" + raw.Handle
	}

	return catalog.CanonicalProduct{
		Platform:    t.cfg.Platform,
		ID:          raw.Key(),
		Name:        raw.Title,
		Price:       extractPrice(raw.Variants),
		Sizes:       extractSizes(raw.Variants),
		Brand:       t.extractBrand(raw.Tags),
		Category:    t.extractCategory(raw.ProductType, tags),
		Gender:      t.extractGender(tags),
		S3ImageURL:  primaryImage,
		PlatformURL: platformURL,
		ImageCount:  len(images),
		ItemImages:  images,
	}
}

// normalizeTags lowercases and trims the canonical tag sequence; all
// downstream extractors work on this normalized form.
func normalizeTags(tags catalog.TagList) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if s := strings.ToLower(strings.TrimSpace(tag)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractPrice takes the first variant's decimal price and truncates
// it toward zero. A missing or unparseable price yields nil, which the
// validator rejects as a missing required field.
func extractPrice(variants []catalog.RawVariant) *int64 {
	if len(variants) == 0 {
		return nil
	}
	raw := strings.TrimSpace(variants[0].Price)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	price := int64(f)
	return &price
}

// extractSizes builds one size entry per variant title. The platform
// emits "Default Title" for single-variant products; that is a
// non-size and is skipped. When nothing remains, a fallback entry
// keeps the sizes list non-empty.
func extractSizes(variants []catalog.RawVariant) []catalog.Size {
	sizes := make([]catalog.Size, 0, len(variants))
	for _, v := range variants {
		title := strings.TrimSpace(v.Title)
		if title == "" || title == "Default Title" {
			continue
		}
		sizes = append(sizes, catalog.Size{ID: title, Row: title, Size: title})
	}
	if len(sizes) == 0 {
		sizes = append(sizes, catalog.Size{ID: DefaultSize, Row: DefaultSize, Size: DefaultSize})
	}
	return sizes
}

// extractBrand scans the original-case tags for a brand keyword. The
// first match wins; "brand:Nike" style tags contribute the part after
// the colon, bare matches contribute the whole tag. No match yields
// the all-null brand shape, never an absent brand.
func (t *Transformer) extractBrand(tags catalog.TagList) catalog.Brand {
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, keyword := range t.cfg.Rules.BrandKeywords {
			if !strings.Contains(lower, strings.ToLower(keyword)) {
				continue
			}
			name := strings.TrimSpace(tag)
			if idx := strings.LastIndex(tag, ":"); idx >= 0 {
				name = strings.TrimSpace(tag[idx+1:])
			}
			if name == "" {
				continue
			}
			return catalog.Brand{Name: &name}
		}
	}
	return catalog.Brand{}
}

// extractCategory scans the product-type field first, then the tags,
// against the ordered category table. First match wins.
func (t *Transformer) extractCategory(productType string, tags []string) string {
	if c, ok := t.matchCategory(strings.ToLower(productType)); ok {
		return c
	}
	for _, tag := range tags {
		if c, ok := t.matchCategory(tag); ok {
			return c
		}
	}
	return DefaultCategory
}

func (t *Transformer) matchCategory(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, rule := range t.cfg.Rules.Categories {
		if strings.Contains(s, strings.ToLower(rule.Keyword)) {
			return rule.Category, true
		}
	}
	return "", false
}

// extractGender checks the womens keywords before the mens keywords.
// The order matters: "womens" contains "men" under substring matching,
// and a product tagged with both signals classifies as womens.
func (t *Transformer) extractGender(tags []string) string {
	if matchAny(tags, t.cfg.Rules.WomensKeywords) {
		return catalog.GenderWomens
	}
	if matchAny(tags, t.cfg.Rules.MensKeywords) {
		return catalog.GenderMens
	}
	return catalog.GenderUnisex
}

func matchAny(tags, keywords []string) bool {
	for _, tag := range tags {
		for _, keyword := range keywords {
			if strings.Contains(tag, strings.ToLower(keyword)) {
				return true
			}
		}
	}
	return false
}
