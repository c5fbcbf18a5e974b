package repositories

import (
	"context"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

// VendorRepository defines the interface for vendor directory persistence
type VendorRepository interface {
	// Create creates a new vendor
	Create(ctx context.Context, vendor *entities.Vendor) error

	// GetByID retrieves a vendor by ID
	GetByID(ctx context.Context, id string) (*entities.Vendor, error)

	// GetByDomain retrieves a vendor by its normalized domain
	GetByDomain(ctx context.Context, domain string) (*entities.Vendor, error)

	// List retrieves vendors with filters
	List(ctx context.Context, filter VendorFilter) ([]*entities.Vendor, error)

	// ListWithoutEmbedding retrieves vendors that still need an embedding
	ListWithoutEmbedding(ctx context.Context, limit int) ([]*entities.Vendor, error)

	// Update updates a vendor
	Update(ctx context.Context, vendor *entities.Vendor) error

	// UpdateEmbedding stores a freshly computed description embedding
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error

	// Delete deletes a vendor
	Delete(ctx context.Context, id string) error
}

// VendorFilter defines filters for listing vendors
type VendorFilter struct {
	ServiceArea string
	Limit       int
	Offset      int
}

// VendorSearchIndex defines the interface for vendor similarity search.
// Implementations index vendor embeddings and answer nearest-neighbor
// queries against a query embedding.
type VendorSearchIndex interface {
	// IndexVendor upserts one vendor document into the index
	IndexVendor(ctx context.Context, vendor *entities.Vendor) error

	// SearchSimilar returns the closest vendors to the query embedding
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*VendorMatch, error)

	// DeleteVendor removes a vendor document from the index
	DeleteVendor(ctx context.Context, id string) error
}

// VendorMatch is one nearest-neighbor hit with its vector distance
type VendorMatch struct {
	Vendor   *entities.Vendor
	Distance float64
}
