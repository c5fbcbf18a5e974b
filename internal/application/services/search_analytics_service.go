package services

import (
	"context"
	"log"
	"time"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/repositories"
)

// SearchAnalyticsService records one row per search for offline analysis.
// Writes are fire-and-forget so analytics can never slow a search down.
type SearchAnalyticsService struct {
	repo repositories.SearchAnalyticsRepository
}

func NewSearchAnalyticsService(repo repositories.SearchAnalyticsRepository) *SearchAnalyticsService {
	return &SearchAnalyticsService{repo: repo}
}

// TrackSearch writes the event in the background. The request context may
// already be cancelled by the time the write runs, so a fresh one is used.
func (s *SearchAnalyticsService) TrackSearch(ctx context.Context, event *entities.SearchEvent) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.repo.LogEvent(bgCtx, event); err != nil {
			log.Printf("Warning: failed to log search event: %v", err)
		}
	}()
}

// GetZeroResultQueries lists recent searches that produced nothing, the
// primary input for coverage tuning.
func (s *SearchAnalyticsService) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	return s.repo.GetZeroResultQueries(ctx, limit)
}
