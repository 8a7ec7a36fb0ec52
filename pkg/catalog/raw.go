// Package catalog defines the raw storefront records returned by the
// products API and the canonical schema they are normalized into.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TagList is the canonical in-memory form of the storefront tags field.
// The API returns tags either as a comma-joined string or as a JSON
// array; both shapes decode into one ordered []string here, so the
// ambiguity never propagates past the JSON boundary.
type TagList []string

// UnmarshalJSON accepts both tag encodings and trims empty entries.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		out := make(TagList, 0, len(arr))
		for _, tag := range arr {
			if s := strings.TrimSpace(tag); s != "" {
				out = append(out, s)
			}
		}
		*t = out
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("tags: expected string or array of strings: %w", err)
	}

	out := make(TagList, 0)
	for _, part := range strings.Split(joined, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	*t = out
	return nil
}

// RawVariant is one purchasable variant of a raw product. The price
// arrives as a decimal string.
type RawVariant struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

// RawImage is one product image reference.
type RawImage struct {
	Src string `json:"src"`
}

// RawProduct is a product record exactly as the storefront API returns
// it. Records are owned transiently by the pipeline and never mutated.
type RawProduct struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Handle      string       `json:"handle"`
	ProductType string       `json:"product_type"`
	Tags        TagList      `json:"tags"`
	Variants    []RawVariant `json:"variants"`
	Images      []RawImage   `json:"images"`
}

// Key returns the dedup identifier for the product. Records without an
// id return "" and are dropped by the aggregator.
func (p RawProduct) Key() string {
	if p.ID == 0 {
		return ""
	}
	return strconv.FormatInt(p.ID, 10)
}

// Page is one page of the paginated products endpoint. Records stay
// raw at the page boundary so a malformed record can be skipped
// individually instead of failing the whole page. An empty Products
// slice signals the end of pagination.
type Page struct {
	Products []json.RawMessage `json:"products"`
}

// RecordError is one record on a page that could not be decoded. ID is
// best-effort, recovered from the raw bytes when the id field itself
// is intact.
type RecordError struct {
	ID  string
	Err error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.ID, e.Err)
}

// Decode unmarshals each record on the page individually. Malformed
// records come back as RecordErrors; the rest of the page is kept.
func (p Page) Decode() ([]RawProduct, []RecordError) {
	products := make([]RawProduct, 0, len(p.Products))
	var malformed []RecordError
	for _, raw := range p.Products {
		var product RawProduct
		if err := json.Unmarshal(raw, &product); err != nil {
			malformed = append(malformed, RecordError{ID: recordID(raw), Err: err})
			continue
		}
		products = append(products, product)
	}
	return products, malformed
}

// recordID pulls the id out of a record that failed full decoding, for
// error attribution. Returns "" when the id field is unusable too.
func recordID(raw json.RawMessage) string {
	var head struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.ID.String()
}
