package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/postgres"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// VendorAdapter implements VendorRepository
type VendorAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewVendorAdapter creates a new vendor adapter
func NewVendorAdapter(client *postgres.Client) repositories.VendorRepository {
	return &VendorAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var vendorColumns = []any{
	"id", "name", "domain", "website", "description", "service_areas",
	"routes", "capacity", "metadata", "embedding", "created_at", "updated_at",
}

// Create creates a new vendor
func (a *VendorAdapter) Create(ctx context.Context, vendor *entities.Vendor) error {
	metadata, _ := json.Marshal(vendor.Metadata)

	record := goqu.Record{
		"id":            vendor.ID,
		"name":          vendor.Name,
		"domain":        entities.NormalizeSellerDomain(vendor.Domain),
		"website":       vendor.Website,
		"description":   vendor.Description,
		"service_areas": pq.Array(vendor.ServiceAreas),
		"routes":        pq.Array(vendor.Routes),
		"capacity":      nullInt(vendor.Capacity),
		"metadata":      string(metadata),
		"embedding":     pq.Float32Array(vendor.Embedding),
		"created_at":    vendor.CreatedAt,
		"updated_at":    vendor.UpdatedAt,
	}

	query, args, err := a.db.Insert("vendors").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create vendor", err)
	}

	return nil
}

// GetByID retrieves a vendor by ID
func (a *VendorAdapter) GetByID(ctx context.Context, id string) (*entities.Vendor, error) {
	return a.getByField(ctx, "id", id)
}

// GetByDomain retrieves a vendor by its normalized domain
func (a *VendorAdapter) GetByDomain(ctx context.Context, domain string) (*entities.Vendor, error) {
	return a.getByField(ctx, "domain", entities.NormalizeSellerDomain(domain))
}

func (a *VendorAdapter) getByField(ctx context.Context, field, value string) (*entities.Vendor, error) {
	query, args, err := a.db.Select(vendorColumns...).
		From("vendors").
		Where(goqu.Ex{field: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)
	vendor, err := scanVendor(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("vendor with %s %s not found", field, value))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get vendor", err)
	}

	return vendor, nil
}

// List retrieves vendors with filters
func (a *VendorAdapter) List(ctx context.Context, filter repositories.VendorFilter) ([]*entities.Vendor, error) {
	q := a.db.Select(vendorColumns...).From("vendors")

	if filter.ServiceArea != "" {
		q = q.Where(goqu.L("? = ANY(service_areas)", filter.ServiceArea))
	}

	q = q.Order(goqu.I("name").Asc())

	if filter.Limit > 0 {
		q = q.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint(filter.Offset))
	}

	return a.queryVendors(ctx, q)
}

// ListWithoutEmbedding retrieves vendors that still need an embedding
func (a *VendorAdapter) ListWithoutEmbedding(ctx context.Context, limit int) ([]*entities.Vendor, error) {
	q := a.db.Select(vendorColumns...).
		From("vendors").
		Where(goqu.Or(
			goqu.Ex{"embedding": nil},
			goqu.L("cardinality(embedding) = 0"),
		)).
		Order(goqu.I("created_at").Asc())

	if limit > 0 {
		q = q.Limit(uint(limit))
	}

	return a.queryVendors(ctx, q)
}

func (a *VendorAdapter) queryVendors(ctx context.Context, q *goqu.SelectDataset) ([]*entities.Vendor, error) {
	query, args, err := q.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list vendors", err)
	}
	defer rows.Close()

	vendors := []*entities.Vendor{}
	for rows.Next() {
		vendor, err := scanVendor(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan vendor", err)
		}
		vendors = append(vendors, vendor)
	}

	return vendors, nil
}

// Update updates a vendor
func (a *VendorAdapter) Update(ctx context.Context, vendor *entities.Vendor) error {
	vendor.UpdatedAt = time.Now().UTC()
	metadata, _ := json.Marshal(vendor.Metadata)

	record := goqu.Record{
		"name":          vendor.Name,
		"domain":        entities.NormalizeSellerDomain(vendor.Domain),
		"website":       vendor.Website,
		"description":   vendor.Description,
		"service_areas": pq.Array(vendor.ServiceAreas),
		"routes":        pq.Array(vendor.Routes),
		"capacity":      nullInt(vendor.Capacity),
		"metadata":      string(metadata),
		"updated_at":    vendor.UpdatedAt,
	}

	query, args, err := a.db.Update("vendors").
		Set(record).
		Where(goqu.Ex{"id": vendor.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update vendor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("vendor with id %s not found", vendor.ID))
	}

	return nil
}

// UpdateEmbedding stores a freshly computed description embedding
func (a *VendorAdapter) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	query, args, err := a.db.Update("vendors").
		Set(goqu.Record{
			"embedding":  pq.Float32Array(embedding),
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update vendor embedding", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("vendor with id %s not found", id))
	}

	return nil
}

// Delete deletes a vendor
func (a *VendorAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("vendors").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete vendor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("vendor with id %s not found", id))
	}

	return nil
}

func scanVendor(row rowScanner) (*entities.Vendor, error) {
	vendor := &entities.Vendor{}
	var capacity sql.NullInt64
	var metadataRaw []byte
	var embedding pq.Float32Array

	err := row.Scan(
		&vendor.ID,
		&vendor.Name,
		&vendor.Domain,
		&vendor.Website,
		&vendor.Description,
		pq.Array(&vendor.ServiceAreas),
		pq.Array(&vendor.Routes),
		&capacity,
		&metadataRaw,
		&embedding,
		&vendor.CreatedAt,
		&vendor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if capacity.Valid {
		c := int(capacity.Int64)
		vendor.Capacity = &c
	}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &vendor.Metadata)
	}
	vendor.Embedding = []float32(embedding)

	return vendor, nil
}
