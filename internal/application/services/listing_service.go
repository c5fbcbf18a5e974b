package services

import (
	"context"
	"log"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// ListingService handles reads and selection updates for persisted listings
type ListingService struct {
	repo     repositories.ListingRepository
	eventBus providers.EventBus
}

// NewListingService creates a new listing service
func NewListingService(repo repositories.ListingRepository, eventBus providers.EventBus) *ListingService {
	return &ListingService{
		repo:     repo,
		eventBus: eventBus,
	}
}

// GetByID retrieves a listing by ID
func (s *ListingService) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByRequest retrieves the listings persisted for a search request
func (s *ListingService) ListByRequest(ctx context.Context, requestID string, filter repositories.ListingFilter) ([]*entities.Listing, error) {
	return s.repo.ListByRequest(ctx, requestID, filter)
}

// SetSelection flips the selection flag on a listing and announces the
// change. A failed publish does not fail the update; subscribers fall back
// to cache TTLs.
func (s *ListingService) SetSelection(ctx context.Context, id string, selected bool) (*entities.Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, apperrors.NewNotFoundError("listing not found: " + id)
	}

	if err := s.repo.SetSelected(ctx, id, selected); err != nil {
		return nil, err
	}
	listing.IsSelected = selected

	if s.eventBus != nil {
		event := entities.NewSourcingEvent(listing.RequestID, entities.SourcingEventTypeListingSelected, listing.Source, map[string]any{
			"listing_id": listing.ID,
			"selected":   selected,
		})
		if err := s.eventBus.Publish(ctx, providers.GetRequestChannel(listing.RequestID), event); err != nil {
			log.Printf("Warning: Failed to publish selection event for listing %s: %v", listing.ID, err)
		}
		if err := s.eventBus.Publish(ctx, providers.EventChannelSearchUpdates, event); err != nil {
			log.Printf("Warning: Failed to publish selection event for listing %s: %v", listing.ID, err)
		}
	}

	return listing, nil
}
