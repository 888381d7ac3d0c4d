package model

// Spec limits for an extracted product.
const (
	MinProductSpecs  = 1
	MaxProductSpecs  = 5
	MinRecommendRank = 1
	MaxRecommendRank = 5
)

// ProductSpec is a single name/value specification pair, ranked by how
// useful it is for comparison.
type ProductSpec struct {
	Name  string `json:"specification_name"`
	Value string `json:"specification_value"`
}

// Product is the structured record extracted from one product page.
// OriginalPrice and DiscountPercent are nil when the listing has no
// discount.
type Product struct {
	PageURL         string        `json:"page_url"`
	Title           string        `json:"product_title"`
	ImageURL        string        `json:"product_image_url"`
	ProductURL      string        `json:"product_url"`
	CurrentPrice    float64       `json:"product_current_price"`
	OriginalPrice   *float64      `json:"product_original_price,omitempty"`
	DiscountPercent *float64      `json:"product_discount_percentage,omitempty"`
	Specs           []ProductSpec `json:"product_specs"`
	Rank            int           `json:"recommendation_rank"`
	Notes           []string      `json:"recommendation_notes"`
}

// Validate checks a single extracted product record.
func (p *Product) Validate() error {
	if p.PageURL == "" {
		return invalid("page_url", "required")
	}
	if p.Title == "" {
		return invalid("product_title", "required")
	}
	if p.CurrentPrice <= 0 {
		return invalid("product_current_price", "must be positive")
	}
	if n := len(p.Specs); n < MinProductSpecs || n > MaxProductSpecs {
		return invalid("product_specs", "must contain 1 to 5 entries")
	}
	if p.Rank < MinRecommendRank || p.Rank > MaxRecommendRank {
		return invalid("recommendation_rank", "must be in [1, 5]")
	}
	return nil
}

// ProductSet is the ordered extraction output, bounded to the requested
// top-N count. A nil entry is a fallback record: extraction failed for
// that position's URL and the gap is preserved for traceability.
type ProductSet struct {
	Products []*Product `json:"products"`
}

// Extracted counts the non-nil entries.
func (s ProductSet) Extracted() int {
	n := 0
	for _, p := range s.Products {
		if p != nil {
			n++
		}
	}
	return n
}
