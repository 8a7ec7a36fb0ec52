package transform

// Default values emitted when no heuristic matches.
const (
	// DefaultCategory closes the category set for records nothing
	// matches.
	DefaultCategory = "other"

	// DefaultSize is synthesized when a product's variants carry no
	// size designation, so the sizes list is never empty.
	DefaultSize = "One Size"
)

// CategoryRule maps a keyword to a canonical category. Rules are
// checked in order; the first match wins.
type CategoryRule struct {
	Keyword  string
	Category string
}

// Rules are the immutable keyword tables driving brand, category and
// gender extraction. They are injected at pipeline construction so
// heuristics stay deterministic and unit-testable without network
// access. All matching is case-insensitive substring matching against
// lowercased tags.
type Rules struct {
	// BrandKeywords mark a tag as brand-bearing, e.g. "brand:Nike".
	BrandKeywords []string

	// Categories is the ordered (keyword, category) table. English and
	// Japanese keywords live in the same list and are checked in one
	// pass.
	Categories []CategoryRule

	// WomensKeywords are checked before MensKeywords; a product tagged
	// with both classifies as womens. This precedence is an observable
	// policy, not an incidental default.
	WomensKeywords []string
	MensKeywords   []string
}

// DefaultRules returns the stock keyword tables for the storefront.
func DefaultRules() Rules {
	return Rules{
		BrandKeywords: []string{"brand", "ブランド", "メーカー"},
		Categories: []CategoryRule{
			{"tops", "tops"},
			{"トップス", "tops"},
			{"shirt", "tops"},
			{"tee", "tops"},
			{"bottoms", "bottoms"},
			{"ボトムス", "bottoms"},
			{"pants", "bottoms"},
			{"skirt", "bottoms"},
			{"shoes", "shoes"},
			{"シューズ", "shoes"},
			{"sneaker", "shoes"},
			{"boots", "shoes"},
			{"outer", "outerwear"},
			{"アウター", "outerwear"},
			{"jacket", "outerwear"},
			{"coat", "outerwear"},
			{"accessor", "accessories"},
			{"アクセサリー", "accessories"},
			{"bag", "accessories"},
			{"hat", "accessories"},
		},
		WomensKeywords: []string{"women", "ladies", "レディース", "女性"},
		MensKeywords:   []string{"men", "メンズ", "男性"},
	}
}
