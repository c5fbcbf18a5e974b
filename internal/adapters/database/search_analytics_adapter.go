package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/postgres"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

type SearchAnalyticsAdapter struct {
	client *postgres.Client
}

func NewSearchAnalyticsAdapter(client *postgres.Client) repositories.SearchAnalyticsRepository {
	return &SearchAnalyticsAdapter{client: client}
}

func (a *SearchAnalyticsAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO search_analytics
		(id, request_id, query, category, providers_total, providers_ok, result_count, deduped_count, filtered_count, reranked, latency_ms, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := a.client.DB().ExecContext(ctx, query,
		event.ID,
		event.RequestID,
		event.Query,
		event.Category,
		event.ProvidersTotal,
		event.ProvidersOK,
		event.ResultCount,
		event.DedupedCount,
		event.FilteredCount,
		event.Reranked,
		event.LatencyMs,
		event.SessionID,
		event.CreatedAt,
	)

	if err != nil {
		return apperrors.NewInternalError("failed to log search event", err)
	}

	return nil
}

func (a *SearchAnalyticsAdapter) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, request_id, query, category, providers_total, providers_ok, result_count, deduped_count, filtered_count, reranked, latency_ms, session_id, created_at
		FROM search_analytics
		WHERE result_count = 0
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := a.client.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get zero result queries", err)
	}
	defer rows.Close()

	var events []*entities.SearchEvent
	for rows.Next() {
		e := &entities.SearchEvent{}
		err := rows.Scan(
			&e.ID,
			&e.RequestID,
			&e.Query,
			&e.Category,
			&e.ProvidersTotal,
			&e.ProvidersOK,
			&e.ResultCount,
			&e.DedupedCount,
			&e.FilteredCount,
			&e.Reranked,
			&e.LatencyMs,
			&e.SessionID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan search event", err)
		}
		events = append(events, e)
	}

	return events, nil
}

func (a *SearchAnalyticsAdapter) GetRecentRequestIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT request_id
		FROM search_analytics
		WHERE request_id <> ''
		GROUP BY request_id
		ORDER BY MAX(created_at) DESC
		LIMIT $1
	`

	rows, err := a.client.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get recent request ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan request id", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
