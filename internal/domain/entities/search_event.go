package entities

import (
	"time"
)

// SearchEvent represents a single aggregated search interaction for analytics.
type SearchEvent struct {
	ID             string    `json:"id" db:"id"`
	RequestID      string    `json:"request_id" db:"request_id"`
	Query          string    `json:"query" db:"query"`
	Category       string    `json:"category" db:"category"`
	ProvidersTotal int       `json:"providers_total" db:"providers_total"`
	ProvidersOK    int       `json:"providers_ok" db:"providers_ok"`
	ResultCount    int       `json:"result_count" db:"result_count"`
	DedupedCount   int       `json:"deduped_count" db:"deduped_count"`
	FilteredCount  int       `json:"filtered_count" db:"filtered_count"`
	Reranked       bool      `json:"reranked" db:"reranked"`
	LatencyMs      int       `json:"latency_ms" db:"latency_ms"`
	SessionID      string    `json:"session_id,omitempty" db:"session_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ZeroResults reports whether the search produced no listings at all.
func (e *SearchEvent) ZeroResults() bool {
	return e.ResultCount == 0
}
