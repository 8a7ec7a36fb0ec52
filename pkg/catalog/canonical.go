package catalog

// Gender values accepted by the canonical schema.
const (
	GenderWomens = "womens"
	GenderMens   = "mens"
	GenderUnisex = "unisex"
)

// Size is one size entry of a canonical product. A product always has
// at least one entry; the transformer synthesizes a fallback when the
// source variants carry no size designation.
type Size struct {
	ID   string `json:"id"`
	Row  string `json:"row"`
	Size string `json:"size"`
}

// Brand carries brand information extracted from tags. The three-field
// shape is always emitted; fields are null when no brand was found.
type Brand struct {
	ID      *string `json:"id"`
	Name    *string `json:"name"`
	SubName *string `json:"sub_name"`
}

// CanonicalProduct is the output schema, independent of source API
// quirks. Price is a pointer so a record whose source carried no
// parseable price stays distinguishable from a free product; the
// validator rejects nil prices before anything reaches a sink.
type CanonicalProduct struct {
	Platform    string   `json:"platform"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       *int64   `json:"price"`
	Sizes       []Size   `json:"sizes"`
	Brand       Brand    `json:"brand"`
	Category    string   `json:"category"`
	Gender      string   `json:"gender"`
	S3ImageURL  string   `json:"s3_image_url"`
	PlatformURL string   `json:"platform_url"`
	ImageCount  int      `json:"image_count"`
	ItemImages  []string `json:"item_images"`
}
