package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/postgres"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// SellerAdapter implements SellerRepository
type SellerAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSellerAdapter creates a new seller adapter
func NewSellerAdapter(client *postgres.Client) repositories.SellerRepository {
	return &SellerAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new seller
func (a *SellerAdapter) Create(ctx context.Context, seller *entities.Seller) error {
	record := goqu.Record{
		"id":         seller.ID,
		"name":       seller.Name,
		"domain":     seller.Domain,
		"created_at": seller.CreatedAt,
	}

	query, args, err := a.db.Insert("sellers").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create seller", err)
	}

	return nil
}

// GetByID retrieves a seller by ID
func (a *SellerAdapter) GetByID(ctx context.Context, id string) (*entities.Seller, error) {
	return a.getByField(ctx, "id", id)
}

// GetByDomain retrieves a seller by its normalized domain
func (a *SellerAdapter) GetByDomain(ctx context.Context, domain string) (*entities.Seller, error) {
	return a.getByField(ctx, "domain", entities.NormalizeSellerDomain(domain))
}

func (a *SellerAdapter) getByField(ctx context.Context, field, value string) (*entities.Seller, error) {
	query, args, err := a.db.Select("id", "name", "domain", "created_at").
		From("sellers").
		Where(goqu.Ex{field: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	seller := &entities.Seller{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&seller.ID,
		&seller.Name,
		&seller.Domain,
		&seller.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("seller with %s %s not found", field, value))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get seller", err)
	}

	return seller, nil
}

// GetByDomains retrieves sellers for multiple domains in one query, keyed by
// normalized domain. Missing domains are simply absent from the map.
func (a *SellerAdapter) GetByDomains(ctx context.Context, domains []string) (map[string]*entities.Seller, error) {
	if len(domains) == 0 {
		return map[string]*entities.Seller{}, nil
	}

	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		if d := entities.NormalizeSellerDomain(domain); d != "" {
			normalized = append(normalized, d)
		}
	}
	if len(normalized) == 0 {
		return map[string]*entities.Seller{}, nil
	}

	query, args, err := a.db.Select("id", "name", "domain", "created_at").
		From("sellers").
		Where(goqu.Ex{"domain": normalized}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get sellers by domains", err)
	}
	defer rows.Close()

	sellers := make(map[string]*entities.Seller, len(normalized))
	for rows.Next() {
		seller := &entities.Seller{}
		err := rows.Scan(&seller.ID, &seller.Name, &seller.Domain, &seller.CreatedAt)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan seller", err)
		}
		sellers[seller.Domain] = seller
	}

	return sellers, nil
}

// GetOrCreate returns the seller for a domain, creating it when absent.
// Concurrent creates of the same domain are resolved by re-reading after a
// conflicting insert.
func (a *SellerAdapter) GetOrCreate(ctx context.Context, name, domain string) (*entities.Seller, error) {
	normalized := entities.NormalizeSellerDomain(domain)
	if normalized == "" {
		return nil, apperrors.NewValidationError("seller domain is required")
	}

	seller, err := a.GetByDomain(ctx, normalized)
	if err == nil {
		return seller, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	seller = entities.NewSeller(name, normalized)
	if err := a.Create(ctx, seller); err != nil {
		// Another writer may have inserted the domain first.
		if existing, getErr := a.GetByDomain(ctx, normalized); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	return seller, nil
}
