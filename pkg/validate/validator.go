// Package validate enforces the canonical schema on transformed
// products before they reach a sink. Validation fails open at record
// granularity (a rejected record is skipped, the run continues) and
// closed at field granularity (a record missing a required field is
// never emitted, even partially).
package validate

import (
	"fmt"

	"github.com/closetloop/catalog-harvester/pkg/catalog"
)

// ValidationError carries the rejection reason for a single record.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func reject(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a canonical product against the schema invariants.
// Checks run in order and short-circuit on the first failure. The
// brand shape needs no check here: catalog.Brand fixes the three-field
// form at the type level and the transformer always emits it.
func Validate(p catalog.CanonicalProduct) error {
	// 1. Required top-level fields.
	if p.Platform == "" {
		return reject("missing required field: platform")
	}
	if p.ID == "" {
		return reject("missing required field: id")
	}
	if p.Name == "" {
		return reject("missing required field: name")
	}
	if p.Price == nil {
		return reject("missing required field: price")
	}

	// 2. Price domain.
	if *p.Price < 0 {
		return reject("price must be non-negative, got %d", *p.Price)
	}

	// 3. Sizes: non-empty, each entry fully populated.
	if len(p.Sizes) == 0 {
		return reject("sizes must not be empty")
	}
	for i, s := range p.Sizes {
		if s.ID == "" || s.Row == "" || s.Size == "" {
			return reject("size entry %d missing required sub-fields", i)
		}
	}

	// 4. Gender closed set.
	switch p.Gender {
	case catalog.GenderWomens, catalog.GenderMens, catalog.GenderUnisex:
	default:
		return reject("invalid gender: %q", p.Gender)
	}

	// 5. Image bookkeeping.
	if p.ImageCount < 0 {
		return reject("image count must be non-negative, got %d", p.ImageCount)
	}

	return nil
}
