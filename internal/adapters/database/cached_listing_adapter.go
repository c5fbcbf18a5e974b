package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
)

// CachedListingAdapter wraps a ListingRepository with caching. Reads for a
// request's result page are served from cache between searches; any write to
// a request invalidates that request's keys.
type CachedListingAdapter struct {
	adapter repositories.ListingRepository
	cache   providers.CacheProvider
}

// NewCachedListingAdapter creates a new cached listing adapter
func NewCachedListingAdapter(adapter repositories.ListingRepository, cache providers.CacheProvider) repositories.ListingRepository {
	return &CachedListingAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	listingByIDTTL  = 300 // 5 minutes for single listing
	listingsListTTL = 120 // 2 minutes for request result pages
)

func listingCacheKey(id string) string {
	return fmt.Sprintf("listing:%s", id)
}

func listingsByRequestCacheKey(requestID string, filter repositories.ListingFilter) string {
	return fmt.Sprintf("listings:request:%s:%s:%t:%d:%d",
		requestID, filter.Source, filter.SelectedOnly, filter.Limit, filter.Offset)
}

func listingsRequestPattern(requestID string) string {
	return fmt.Sprintf("listings:request:%s:*", requestID)
}

// Create creates a listing and invalidates the request's cached pages
func (a *CachedListingAdapter) Create(ctx context.Context, listing *entities.Listing) error {
	if err := a.adapter.Create(ctx, listing); err != nil {
		return err
	}

	a.invalidateRequest(listing.RequestID)
	return nil
}

// GetByID retrieves a listing by ID with caching
func (a *CachedListingAdapter) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	cacheKey := listingCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var listing entities.Listing
		if err := json.Unmarshal(cached, &listing); err == nil {
			return &listing, nil
		}
		log.Printf("Failed to unmarshal cached listing %s: %v", id, err)
	}

	listing, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(listing); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, listingByIDTTL); err != nil {
				log.Printf("Failed to cache listing %s: %v", id, err)
			}
		}
	}()

	return listing, nil
}

// GetByRequestAndCanonicalURL is an idempotency lookup on the write path and
// is never cached: persistence must see the latest row.
func (a *CachedListingAdapter) GetByRequestAndCanonicalURL(ctx context.Context, requestID, canonicalURL string) (*entities.Listing, error) {
	return a.adapter.GetByRequestAndCanonicalURL(ctx, requestID, canonicalURL)
}

// GetByRequestAndURL is the raw-URL fallback lookup, also uncached
func (a *CachedListingAdapter) GetByRequestAndURL(ctx context.Context, requestID, rawURL string) (*entities.Listing, error) {
	return a.adapter.GetByRequestAndURL(ctx, requestID, rawURL)
}

// ListByRequest retrieves a request's listings with caching
func (a *CachedListingAdapter) ListByRequest(ctx context.Context, requestID string, filter repositories.ListingFilter) ([]*entities.Listing, error) {
	cacheKey := listingsByRequestCacheKey(requestID, filter)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var listings []*entities.Listing
		if err := json.Unmarshal(cached, &listings); err == nil {
			return listings, nil
		}
		log.Printf("Failed to unmarshal cached listings for request %s: %v", requestID, err)
	}

	listings, err := a.adapter.ListByRequest(ctx, requestID, filter)
	if err != nil {
		return nil, err
	}

	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(listings); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, listingsListTTL); err != nil {
				log.Printf("Failed to cache listings for request %s: %v", requestID, err)
			}
		}
	}()

	return listings, nil
}

// Update updates a listing and invalidates its caches
func (a *CachedListingAdapter) Update(ctx context.Context, listing *entities.Listing) error {
	if err := a.adapter.Update(ctx, listing); err != nil {
		return err
	}

	go func() {
		bgCtx := context.Background()
		if err := a.cache.Delete(bgCtx, listingCacheKey(listing.ID)); err != nil {
			log.Printf("Failed to invalidate listing cache %s: %v", listing.ID, err)
		}
	}()
	a.invalidateRequest(listing.RequestID)

	return nil
}

// SetSelected flips the selection flag and invalidates caches. The parent
// request is read first since selection only knows the listing ID.
func (a *CachedListingAdapter) SetSelected(ctx context.Context, id string, selected bool) error {
	listing, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := a.adapter.SetSelected(ctx, id, selected); err != nil {
		return err
	}

	go func() {
		bgCtx := context.Background()
		if err := a.cache.Delete(bgCtx, listingCacheKey(id)); err != nil {
			log.Printf("Failed to invalidate listing cache %s: %v", id, err)
		}
	}()
	a.invalidateRequest(listing.RequestID)

	return nil
}

// DeleteOutOfRange prunes out-of-range listings and invalidates the request
func (a *CachedListingAdapter) DeleteOutOfRange(ctx context.Context, requestID string, minPrice, maxPrice *float64, exemptSources []string) (int, error) {
	deleted, err := a.adapter.DeleteOutOfRange(ctx, requestID, minPrice, maxPrice, exemptSources)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		a.invalidateRequest(requestID)
	}
	return deleted, nil
}

func (a *CachedListingAdapter) invalidateRequest(requestID string) {
	go func() {
		bgCtx := context.Background()
		if err := a.cache.DeletePattern(bgCtx, listingsRequestPattern(requestID)); err != nil {
			log.Printf("Failed to invalidate listings cache for request %s: %v", requestID, err)
		}
	}()
}
