package entities

import (
	"strings"
)

// NormalizedResult is the canonical listing representation flowing through the
// pipeline after normalization. CanonicalURL is computed once at normalization
// time and is the system's identity key; Provenance is the one mutable bag,
// used to attach score breakdowns and display metadata.
type NormalizedResult struct {
	Title            string         `json:"title"`
	URL              string         `json:"url"`
	Source           string         `json:"source"`
	Price            *float64       `json:"price"` // nil means quote required, never zero
	Currency         string         `json:"currency"`
	PriceOriginal    *float64       `json:"price_original,omitempty"`
	CurrencyOriginal string         `json:"currency_original,omitempty"`
	CanonicalURL     string         `json:"canonical_url,omitempty"`
	MerchantName     string         `json:"merchant_name"`
	MerchantDomain   string         `json:"merchant_domain"`
	ImageURL         string         `json:"image_url,omitempty"`
	Rating           *float64       `json:"rating,omitempty"`
	ReviewsCount     *int           `json:"reviews_count,omitempty"`
	ShippingInfo     string         `json:"shipping_info,omitempty"`
	RawData          map[string]any `json:"raw_data,omitempty"`
	Provenance       map[string]any `json:"provenance,omitempty"`
	Embedding        []float32      `json:"-"`
}

// DedupKey returns the identity key used for cross-provider deduplication:
// the canonical URL when present, otherwise the lower-cased raw URL with any
// trailing slash removed.
func (r *NormalizedResult) DedupKey() string {
	if r.CanonicalURL != "" {
		return r.CanonicalURL
	}
	return strings.TrimRight(strings.ToLower(r.URL), "/")
}

// EnsureProvenance lazily initializes the provenance bag
func (r *NormalizedResult) EnsureProvenance() map[string]any {
	if r.Provenance == nil {
		r.Provenance = make(map[string]any)
	}
	return r.Provenance
}

// SetScore attaches the score breakdown to the result's provenance
func (r *NormalizedResult) SetScore(score *ScoreBreakdown) {
	r.EnsureProvenance()["score"] = score
}

// Score returns the attached score breakdown, or nil before scoring ran
func (r *NormalizedResult) Score() *ScoreBreakdown {
	if r.Provenance == nil {
		return nil
	}
	score, _ := r.Provenance["score"].(*ScoreBreakdown)
	return score
}

// CombinedScore returns the final ordering key, 0 before scoring ran
func (r *NormalizedResult) CombinedScore() float64 {
	if score := r.Score(); score != nil {
		return score.Combined
	}
	return 0
}

// PriceValue returns the concrete price or 0 when the result is unpriced.
// Callers that care about the unpriced distinction must check Price != nil.
func (r *NormalizedResult) PriceValue() float64 {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}

// SearchableText returns the lower-cased text block used for term matching
func (r *NormalizedResult) SearchableText() string {
	parts := []string{r.Title, r.MerchantName, r.MerchantDomain, r.ShippingInfo}
	if r.RawData != nil {
		if desc, ok := r.RawData["description"].(string); ok {
			parts = append(parts, desc)
		}
		if snippet, ok := r.RawData["snippet"].(string); ok {
			parts = append(parts, snippet)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
