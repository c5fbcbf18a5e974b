package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/infrastructure/observability"
)

// SearchMetrics holds the OTel instruments shared by every search. Create it
// once at startup; a nil *SearchMetrics disables instrument recording but the
// per-search summary log still fires.
type SearchMetrics struct {
	searchCount      metric.Int64Counter
	searchDuration   metric.Float64Histogram
	providerCount    metric.Int64Counter
	providerDuration metric.Float64Histogram
	resultsFiltered  metric.Int64Counter
	resultsPersisted metric.Int64Counter
}

// NewSearchMetrics initializes the sourcing pipeline instruments
func NewSearchMetrics() (*SearchMetrics, error) {
	meter := otel.Meter("github.com/dealscout/sourcing/sourcing")

	searchCount, err := meter.Int64Counter(
		"sourcing.search.count",
		metric.WithDescription("Number of sourcing searches"),
	)
	if err != nil {
		return nil, err
	}
	searchDuration, err := meter.Float64Histogram(
		"sourcing.search.duration",
		metric.WithDescription("End-to-end sourcing search duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	providerCount, err := meter.Int64Counter(
		"sourcing.provider.request.count",
		metric.WithDescription("Provider invocations by terminal status"),
	)
	if err != nil {
		return nil, err
	}
	providerDuration, err := meter.Float64Histogram(
		"sourcing.provider.request.duration",
		metric.WithDescription("Provider invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	resultsFiltered, err := meter.Int64Counter(
		"sourcing.results.filtered",
		metric.WithDescription("Results dropped by the filter stage"),
	)
	if err != nil {
		return nil, err
	}
	resultsPersisted, err := meter.Int64Counter(
		"sourcing.results.persisted",
		metric.WithDescription("Listings written by the persistence stage"),
	)
	if err != nil {
		return nil, err
	}

	return &SearchMetrics{
		searchCount:      searchCount,
		searchDuration:   searchDuration,
		providerCount:    providerCount,
		providerDuration: providerDuration,
		resultsFiltered:  resultsFiltered,
		resultsPersisted: resultsPersisted,
	}, nil
}

// SearchMetricsCollector accumulates one search's counters and emits a single
// summary log line plus instrument recordings when the search finishes. It is
// request-local and not safe for concurrent use.
type SearchMetricsCollector struct {
	metrics *SearchMetrics

	requestID string
	query     string
	category  string
	started   time.Time

	statuses  []entities.ProviderStatusSnapshot
	rawCount  int
	deduped   int
	kept      int
	dropped   int
	persisted int
	pruned    int
	reranked  bool
	allFailed bool
}

// NewCollector starts a collector for one search
func (m *SearchMetrics) NewCollector(requestID, query, category string) *SearchMetricsCollector {
	return &SearchMetricsCollector{
		metrics:   m,
		requestID: requestID,
		query:     query,
		category:  category,
		started:   time.Now(),
	}
}

// RecordFanout captures the aggregate fan-out outcome
func (c *SearchMetricsCollector) RecordFanout(response *entities.AggregatedSearchResponse) {
	c.statuses = response.ProviderStatuses
	c.allFailed = response.AllFailed
	c.deduped = len(response.Results)
	for _, status := range response.ProviderStatuses {
		c.rawCount += status.ResultCount
	}
}

// RecordFilter captures the filter stage outcome
func (c *SearchMetricsCollector) RecordFilter(stats FilterStats) {
	c.kept = stats.Kept
	c.dropped = stats.Dropped()
}

// RecordRerank notes whether the similarity reranker ran
func (c *SearchMetricsCollector) RecordRerank(applied bool) {
	c.reranked = applied
}

// RecordPruned notes listings removed by the pre-search price prune
func (c *SearchMetricsCollector) RecordPruned(count int) {
	c.pruned = count
}

// RecordPersisted captures the persistence stage outcome
func (c *SearchMetricsCollector) RecordPersisted(count int) {
	c.persisted = count
}

// ProvidersOK counts providers that returned a usable batch
func (c *SearchMetricsCollector) ProvidersOK() int {
	ok := 0
	for _, status := range c.statuses {
		if !status.Failed() {
			ok++
		}
	}
	return ok
}

// Event builds the analytics row for this search
func (c *SearchMetricsCollector) Event(sessionID string) *entities.SearchEvent {
	return &entities.SearchEvent{
		RequestID:      c.requestID,
		Query:          c.query,
		Category:       c.category,
		ProvidersTotal: len(c.statuses),
		ProvidersOK:    c.ProvidersOK(),
		ResultCount:    c.kept,
		DedupedCount:   c.deduped,
		FilteredCount:  c.dropped,
		Reranked:       c.reranked,
		LatencyMs:      int(time.Since(c.started).Milliseconds()),
		SessionID:      sessionID,
	}
}

// Finish records the instruments and writes the summary line. All providers
// failing logs at error, partial failures or an empty outcome at warn,
// everything else at info.
func (c *SearchMetricsCollector) Finish(ctx context.Context) {
	duration := time.Since(c.started)

	if c.metrics != nil {
		attrs := []attribute.KeyValue{
			attribute.Bool("search.all_failed", c.allFailed),
			attribute.String("search.category", c.category),
		}
		c.metrics.searchCount.Add(ctx, 1, metric.WithAttributes(attrs...))
		c.metrics.searchDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
		c.metrics.resultsFiltered.Add(ctx, int64(c.dropped))
		c.metrics.resultsPersisted.Add(ctx, int64(c.persisted))

		for _, status := range c.statuses {
			providerAttrs := []attribute.KeyValue{
				attribute.String("provider", status.ProviderID),
				attribute.String("status", string(status.Status)),
			}
			c.metrics.providerCount.Add(ctx, 1, metric.WithAttributes(providerAttrs...))
			c.metrics.providerDuration.Record(ctx, float64(status.LatencyMs), metric.WithAttributes(providerAttrs...))
		}
	}

	logger := observability.LoggerFromContext(ctx)
	var event *zerolog.Event
	switch {
	case c.allFailed:
		event = logger.Error()
	case c.ProvidersOK() < len(c.statuses) || c.kept == 0:
		event = logger.Warn()
	default:
		event = logger.Info()
	}

	event.
		Str("request_id", c.requestID).
		Str("category", c.category).
		Int("providers_total", len(c.statuses)).
		Int("providers_ok", c.ProvidersOK()).
		Str("providers", c.providerSummary()).
		Int("raw_results", c.rawCount).
		Int("unique_results", c.deduped).
		Int("kept_results", c.kept).
		Int("filtered_out", c.dropped).
		Int("pruned_listings", c.pruned).
		Int("persisted", c.persisted).
		Bool("reranked", c.reranked).
		Dur("duration", duration).
		Msg("search complete")
}

func (c *SearchMetricsCollector) providerSummary() string {
	parts := make([]string, 0, len(c.statuses))
	for _, status := range c.statuses {
		parts = append(parts, fmt.Sprintf("%s:%s:%dms", status.ProviderID, status.Status, status.LatencyMs))
	}
	return strings.Join(parts, ",")
}
