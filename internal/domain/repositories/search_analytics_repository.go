package repositories

import (
	"context"
	"github.com/dealscout/sourcing/internal/domain/entities"
)

type SearchAnalyticsRepository interface {
	LogEvent(ctx context.Context, event *entities.SearchEvent) error
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)

	// GetRecentRequestIDs returns the most recently searched request IDs,
	// newest first
	GetRecentRequestIDs(ctx context.Context, limit int) ([]string, error)
}
