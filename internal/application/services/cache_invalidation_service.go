package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
)

// CacheInvalidationService keeps cached listing reads consistent with the
// write path by watching search lifecycle events.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for search events and invalidating caches
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelSearchUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to search updates: %w", err)
	}

	go s.processEvents(eventChan)
	log.Println("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	log.Println("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.SourcingEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-eventChan:
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

// handleEvent invalidates the caches a single event made stale. Only events
// that change persisted listings act; search.started and provider completions
// change nothing durable.
func (s *CacheInvalidationService) handleEvent(event *entities.SourcingEvent) {
	switch event.EventType {
	case entities.SourcingEventTypeSearchCompleted, entities.SourcingEventTypeListingSelected:
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.InvalidateRequestCaches(ctx, event.RequestID); err != nil {
		log.Printf("Warning: failed to invalidate request caches for %s: %v", event.RequestID, err)
		return
	}

	if event.EventType == entities.SourcingEventTypeListingSelected {
		if listingID, ok := event.Payload["listing_id"].(string); ok && listingID != "" {
			if err := s.InvalidateListingCache(ctx, listingID); err != nil {
				log.Printf("Warning: failed to invalidate listing cache for %s: %v", listingID, err)
			}
		}
	}

	log.Printf("Invalidated request caches for %s (event: %s)", event.RequestID, event.EventType)
}

// InvalidateRequestCaches drops every cache tied to one sourcing request:
// the repository-level listing lists and the HTTP response cache for the
// request's endpoints.
//
// Search responses themselves are never invalidated here. Their TTLs are
// short, they refresh naturally, and connected clients already receive
// updates over the event stream.
func (s *CacheInvalidationService) InvalidateRequestCaches(ctx context.Context, requestID string) error {
	patterns := []string{
		fmt.Sprintf("listings:request:%s:*", requestID),
		fmt.Sprintf("http:cache:*requests/%s*", requestID),
	}
	for _, pattern := range patterns {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// InvalidateListingCache drops the caches keyed to one listing: the
// repository-level by-id entry and the HTTP response cache for the listing's
// endpoints.
func (s *CacheInvalidationService) InvalidateListingCache(ctx context.Context, listingID string) error {
	if err := s.cache.Delete(ctx, fmt.Sprintf("listing:%s", listingID)); err != nil {
		return fmt.Errorf("failed to invalidate listing cache: %w", err)
	}
	pattern := fmt.Sprintf("http:cache:*listings/%s*", listingID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
	}
	return nil
}

// InvalidateSearchCaches drops every cached search response. Maintenance
// use only; normal operation relies on TTL expiry.
func (s *CacheInvalidationService) InvalidateSearchCaches(ctx context.Context) error {
	patterns := []string{
		"http:cache:*search*",
		"listings:request:*",
	}

	for _, pattern := range patterns {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
		log.Printf("Invalidated cache pattern: %s", pattern)
	}

	return nil
}
