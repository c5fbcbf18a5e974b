package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/postgres"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// ListingAdapter implements ListingRepository
type ListingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewListingAdapter creates a new listing adapter
func NewListingAdapter(client *postgres.Client) repositories.ListingRepository {
	return &ListingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var listingColumns = []any{
	"id", "request_id", "seller_id", "title", "url", "canonical_url", "source",
	"price", "currency", "merchant_name", "merchant_domain", "image_url",
	"rating", "reviews_count", "shipping_info", "is_selected", "provenance",
	"created_at", "updated_at",
}

func listingRecord(listing *entities.Listing) goqu.Record {
	provenance, _ := json.Marshal(listing.Provenance)

	return goqu.Record{
		"id":              listing.ID,
		"request_id":      listing.RequestID,
		"seller_id":       sql.NullString{String: listing.SellerID, Valid: listing.SellerID != ""},
		"title":           listing.Title,
		"url":             listing.URL,
		"canonical_url":   listing.CanonicalURL,
		"source":          listing.Source,
		"price":           nullFloat(listing.Price),
		"currency":        listing.Currency,
		"merchant_name":   listing.MerchantName,
		"merchant_domain": listing.MerchantDomain,
		"image_url":       sql.NullString{String: listing.ImageURL, Valid: listing.ImageURL != ""},
		"rating":          nullFloat(listing.Rating),
		"reviews_count":   nullInt(listing.ReviewsCount),
		"shipping_info":   sql.NullString{String: listing.ShippingInfo, Valid: listing.ShippingInfo != ""},
		"is_selected":     listing.IsSelected,
		"provenance":      string(provenance),
		"created_at":      listing.CreatedAt,
		"updated_at":      listing.UpdatedAt,
	}
}

// Create creates a new listing
func (a *ListingAdapter) Create(ctx context.Context, listing *entities.Listing) error {
	query, args, err := a.db.Insert("listings").Rows(listingRecord(listing)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create listing", err)
	}

	return nil
}

// GetByID retrieves a listing by ID
func (a *ListingAdapter) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("listing with id %s not found", id))
}

// GetByRequestAndCanonicalURL retrieves the listing keyed by (request, canonical URL)
func (a *ListingAdapter) GetByRequestAndCanonicalURL(ctx context.Context, requestID, canonicalURL string) (*entities.Listing, error) {
	return a.getOne(ctx,
		goqu.Ex{"request_id": requestID, "canonical_url": canonicalURL},
		fmt.Sprintf("listing for canonical url %s not found", canonicalURL),
	)
}

// GetByRequestAndURL retrieves a listing by its raw URL within a request
func (a *ListingAdapter) GetByRequestAndURL(ctx context.Context, requestID, rawURL string) (*entities.Listing, error) {
	return a.getOne(ctx,
		goqu.Ex{"request_id": requestID, "url": rawURL},
		fmt.Sprintf("listing for url %s not found", rawURL),
	)
}

func (a *ListingAdapter) getOne(ctx context.Context, where goqu.Ex, notFoundMsg string) (*entities.Listing, error) {
	query, args, err := a.db.Select(listingColumns...).
		From("listings").
		Where(where).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)
	listing, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get listing", err)
	}

	return listing, nil
}

// ListByRequest retrieves all listings for a request
func (a *ListingAdapter) ListByRequest(ctx context.Context, requestID string, filter repositories.ListingFilter) ([]*entities.Listing, error) {
	q := a.db.Select(listingColumns...).
		From("listings").
		Where(goqu.Ex{"request_id": requestID})

	if filter.Source != "" {
		q = q.Where(goqu.Ex{"source": filter.Source})
	}
	if filter.SelectedOnly {
		q = q.Where(goqu.Ex{"is_selected": true})
	}

	q = q.Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())

	if filter.Limit > 0 {
		q = q.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint(filter.Offset))
	}

	query, args, err := q.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list listings", err)
	}
	defer rows.Close()

	listings := []*entities.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan listing", err)
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

// Update updates a listing
func (a *ListingAdapter) Update(ctx context.Context, listing *entities.Listing) error {
	listing.UpdatedAt = time.Now().UTC()

	record := listingRecord(listing)
	delete(record, "id")
	delete(record, "request_id")
	delete(record, "created_at")

	query, args, err := a.db.Update("listings").
		Set(record).
		Where(goqu.Ex{"id": listing.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update listing", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("listing with id %s not found", listing.ID))
	}

	return nil
}

// SetSelected flips the caller-facing selection flag on a listing
func (a *ListingAdapter) SetSelected(ctx context.Context, id string, selected bool) error {
	query, args, err := a.db.Update("listings").
		Set(goqu.Record{
			"is_selected": selected,
			"updated_at":  time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update listing selection", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("listing with id %s not found", id))
	}

	return nil
}

// DeleteOutOfRange removes a request's listings whose price falls outside
// [minPrice, maxPrice]. Unpriced rows and exempt sources are kept: quote-style
// results have no price to judge.
func (a *ListingAdapter) DeleteOutOfRange(ctx context.Context, requestID string, minPrice, maxPrice *float64, exemptSources []string) (int, error) {
	var bounds []goqu.Expression
	if minPrice != nil {
		bounds = append(bounds, goqu.I("price").Lt(*minPrice))
	}
	if maxPrice != nil {
		bounds = append(bounds, goqu.I("price").Gt(*maxPrice))
	}
	if len(bounds) == 0 {
		return 0, nil
	}

	q := a.db.Delete("listings").
		Where(goqu.Ex{"request_id": requestID}).
		Where(goqu.L("price IS NOT NULL")).
		Where(goqu.Or(bounds...))

	if len(exemptSources) > 0 {
		q = q.Where(goqu.I("source").NotIn(exemptSources))
	}

	query, args, err := q.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete out-of-range listings", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}

	return int(rowsAffected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*entities.Listing, error) {
	listing := &entities.Listing{}
	var sellerID, imageURL, shippingInfo sql.NullString
	var price, rating sql.NullFloat64
	var reviewsCount sql.NullInt64
	var provenanceRaw []byte

	err := row.Scan(
		&listing.ID,
		&listing.RequestID,
		&sellerID,
		&listing.Title,
		&listing.URL,
		&listing.CanonicalURL,
		&listing.Source,
		&price,
		&listing.Currency,
		&listing.MerchantName,
		&listing.MerchantDomain,
		&imageURL,
		&rating,
		&reviewsCount,
		&shippingInfo,
		&listing.IsSelected,
		&provenanceRaw,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	listing.SellerID = sellerID.String
	listing.ImageURL = imageURL.String
	listing.ShippingInfo = shippingInfo.String
	if price.Valid {
		listing.Price = &price.Float64
	}
	if rating.Valid {
		listing.Rating = &rating.Float64
	}
	if reviewsCount.Valid {
		count := int(reviewsCount.Int64)
		listing.ReviewsCount = &count
	}
	if len(provenanceRaw) > 0 {
		_ = json.Unmarshal(provenanceRaw, &listing.Provenance)
	}

	return listing, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
