package repositories

import (
	"context"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

// SellerRepository defines the interface for seller persistence
type SellerRepository interface {
	// Create creates a new seller
	Create(ctx context.Context, seller *entities.Seller) error

	// GetByID retrieves a seller by ID
	GetByID(ctx context.Context, id string) (*entities.Seller, error)

	// GetByDomain retrieves a seller by its normalized domain
	GetByDomain(ctx context.Context, domain string) (*entities.Seller, error)

	// GetByDomains retrieves sellers for multiple domains in one query,
	// keyed by normalized domain
	GetByDomains(ctx context.Context, domains []string) (map[string]*entities.Seller, error)

	// GetOrCreate returns the seller for a domain, creating it when absent
	GetOrCreate(ctx context.Context, name, domain string) (*entities.Seller, error)
}
