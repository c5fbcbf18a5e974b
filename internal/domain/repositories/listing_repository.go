package repositories

import (
	"context"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

// ListingRepository defines the interface for listing persistence
type ListingRepository interface {
	// Create creates a new listing
	Create(ctx context.Context, listing *entities.Listing) error

	// GetByID retrieves a listing by ID
	GetByID(ctx context.Context, id string) (*entities.Listing, error)

	// GetByRequestAndCanonicalURL retrieves the listing keyed by
	// (request, canonical URL), the primary idempotency key
	GetByRequestAndCanonicalURL(ctx context.Context, requestID, canonicalURL string) (*entities.Listing, error)

	// GetByRequestAndURL retrieves a listing by its raw URL within a request,
	// the fallback key for rows persisted before canonicalization
	GetByRequestAndURL(ctx context.Context, requestID, rawURL string) (*entities.Listing, error)

	// ListByRequest retrieves all listings for a request
	ListByRequest(ctx context.Context, requestID string, filter ListingFilter) ([]*entities.Listing, error)

	// Update updates a listing
	Update(ctx context.Context, listing *entities.Listing) error

	// SetSelected flips the caller-facing selection flag on a listing
	SetSelected(ctx context.Context, id string, selected bool) error

	// DeleteOutOfRange removes a request's listings whose price falls outside
	// [minPrice, maxPrice], skipping the given quote-style sources
	DeleteOutOfRange(ctx context.Context, requestID string, minPrice, maxPrice *float64, exemptSources []string) (int, error)
}

// ListingFilter defines filters for listing retrieval
type ListingFilter struct {
	Source       string
	SelectedOnly bool
	Limit        int
	Offset       int
}
