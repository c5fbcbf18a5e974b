package entities

import (
	"time"

	"github.com/google/uuid"
)

// Listing is the durable record for one sourced offer. Listings are keyed by
// (RequestID, CanonicalURL): at most one row exists per canonical URL per
// parent request, and repeated searches update rows in place.
type Listing struct {
	ID             string         `json:"id" db:"id"`
	RequestID      string         `json:"request_id" db:"request_id"`
	SellerID       string         `json:"seller_id,omitempty" db:"seller_id"`
	Title          string         `json:"title" db:"title"`
	URL            string         `json:"url" db:"url"`
	CanonicalURL   string         `json:"canonical_url" db:"canonical_url"`
	Source         string         `json:"source" db:"source"`
	Price          *float64       `json:"price" db:"price"`
	Currency       string         `json:"currency" db:"currency"`
	MerchantName   string         `json:"merchant_name" db:"merchant_name"`
	MerchantDomain string         `json:"merchant_domain" db:"merchant_domain"`
	ImageURL       string         `json:"image_url,omitempty" db:"image_url"`
	Rating         *float64       `json:"rating,omitempty" db:"rating"`
	ReviewsCount   *int           `json:"reviews_count,omitempty" db:"reviews_count"`
	ShippingInfo   string         `json:"shipping_info,omitempty" db:"shipping_info"`
	IsSelected     bool           `json:"is_selected" db:"is_selected"`
	Provenance     map[string]any `json:"provenance,omitempty" db:"-"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// NewListingFromResult creates a listing for the first sighting of a result
func NewListingFromResult(requestID string, result *NormalizedResult) *Listing {
	now := time.Now().UTC()
	return &Listing{
		ID:             uuid.NewString(),
		RequestID:      requestID,
		Title:          result.Title,
		URL:            result.URL,
		CanonicalURL:   result.CanonicalURL,
		Source:         result.Source,
		Price:          result.Price,
		Currency:       result.Currency,
		MerchantName:   result.MerchantName,
		MerchantDomain: result.MerchantDomain,
		ImageURL:       result.ImageURL,
		Rating:         result.Rating,
		ReviewsCount:   result.ReviewsCount,
		ShippingInfo:   result.ShippingInfo,
		Provenance:     result.Provenance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ApplyResult refreshes the listing's mutable fields from a re-sighted result.
// Selection state is caller data, not provider data, so IsSelected survives.
func (l *Listing) ApplyResult(result *NormalizedResult) {
	l.Title = result.Title
	l.URL = result.URL
	l.Source = result.Source
	l.Price = result.Price
	l.Currency = result.Currency
	l.MerchantName = result.MerchantName
	l.MerchantDomain = result.MerchantDomain
	if result.ImageURL != "" {
		l.ImageURL = result.ImageURL
	}
	if result.Rating != nil {
		l.Rating = result.Rating
	}
	if result.ReviewsCount != nil {
		l.ReviewsCount = result.ReviewsCount
	}
	if result.ShippingInfo != "" {
		l.ShippingInfo = result.ShippingInfo
	}
	l.Provenance = result.Provenance
	l.UpdatedAt = time.Now().UTC()
}
