package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
)

const (
	warmRecentRequests = 20
	warmListingTTL     = 300 // seconds, matches the read-through listing cache
)

// CacheWarmingService pre-populates the hot read paths: the listing pages of
// recently searched requests. Clients poll those pages right after a search
// completes, so warming them turns the first poll into a cache hit.
type CacheWarmingService struct {
	listingRepo repositories.ListingRepository
	analytics   repositories.SearchAnalyticsRepository
	cache       providers.CacheProvider
}

// NewCacheWarmingService creates a cache warming service. Pass the cached
// listing repository so list reads populate their own cache entries.
func NewCacheWarmingService(
	listingRepo repositories.ListingRepository,
	analytics repositories.SearchAnalyticsRepository,
	cache providers.CacheProvider,
) *CacheWarmingService {
	return &CacheWarmingService{
		listingRepo: listingRepo,
		analytics:   analytics,
		cache:       cache,
	}
}

// WarmCache warms the cache for the most recently searched requests.
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	log.Println("Starting cache warming...")

	requestIDs, err := s.analytics.GetRecentRequestIDs(ctx, warmRecentRequests)
	if err != nil {
		return fmt.Errorf("failed to fetch recent request ids: %w", err)
	}

	warmed := 0
	for _, requestID := range requestIDs {
		if err := s.warmRequest(ctx, requestID); err != nil {
			log.Printf("Failed to warm request %s: %v", requestID, err)
			continue
		}
		warmed++
	}

	log.Printf("Cache warming completed for %d of %d requests", warmed, len(requestIDs))
	return nil
}

// warmRequest reads the request's default listing page through the cached
// repository, then batch-caches the individual listings behind it.
func (s *CacheWarmingService) warmRequest(ctx context.Context, requestID string) error {
	listings, err := s.listingRepo.ListByRequest(ctx, requestID, repositories.ListingFilter{
		Limit:  20,
		Offset: 0,
	})
	if err != nil {
		return err
	}

	items := make(map[string][]byte)
	for _, listing := range listings {
		if listing == nil {
			continue
		}
		data, err := json.Marshal(listing)
		if err != nil {
			log.Printf("Failed to marshal listing %s: %v", listing.ID, err)
			continue
		}
		items[fmt.Sprintf("listing:%s", listing.ID)] = data
	}

	if len(items) > 0 {
		if err := s.cache.SetMulti(ctx, items, warmListingTTL); err != nil {
			return fmt.Errorf("failed to cache listings: %w", err)
		}
	}

	return nil
}

// StartPeriodicWarming starts a background goroutine that periodically warms the cache
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	// Initial warming
	if err := s.WarmCache(ctx); err != nil {
		log.Printf("Initial cache warming failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("Stopping cache warming service")
				return
			case <-ticker.C:
				if err := s.WarmCache(context.Background()); err != nil {
					log.Printf("Periodic cache warming failed: %v", err)
				}
			}
		}
	}()
	log.Printf("Started periodic cache warming every %v", interval)
}

// GetCacheStats samples the recent requests' listing pages and reports how
// many are currently cached.
func (s *CacheWarmingService) GetCacheStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	requestIDs, err := s.analytics.GetRecentRequestIDs(ctx, 5)
	if err != nil {
		return nil, err
	}

	cachedCount := 0
	for _, requestID := range requestIDs {
		key := fmt.Sprintf("listings:request:%s:%s:%t:%d:%d", requestID, "", false, 20, 0)
		exists, err := s.cache.Exists(ctx, key)
		if err != nil {
			continue
		}
		if exists {
			cachedCount++
		}
	}

	stats["cached_sample_keys"] = cachedCount
	stats["total_sample_keys"] = len(requestIDs)
	if len(requestIDs) > 0 {
		stats["sample_cache_hit_rate"] = float64(cachedCount) / float64(len(requestIDs))
	}

	return stats, nil
}
