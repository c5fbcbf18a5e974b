package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/observability"
	"github.com/dealscout/sourcing/pkg/config"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// SourcingOptions tunes one orchestrated search.
type SourcingOptions struct {
	// RequestID is the parent sourcing request the listings attach to.
	// Generated when empty.
	RequestID string

	// Providers restricts the fan-out to the named sources. Empty means
	// every registered provider.
	Providers []string

	// MaxResults overrides the per-provider result cap.
	MaxResults int

	// RerankTopK caps how many ranked results enter the reranker.
	RerankTopK int

	// SessionID correlates the analytics row with a client session.
	SessionID string
}

// SourcingResult is the orchestrated search outcome. Listings are the
// persisted rows in final rank order; a row that failed to persist is
// dropped from the slice but the search still succeeds.
type SourcingResult struct {
	RequestID        string                            `json:"request_id"`
	Listings         []*entities.Listing               `json:"listings"`
	ProviderStatuses []entities.ProviderStatusSnapshot `json:"provider_statuses"`
	AllFailed        bool                              `json:"all_failed"`
	UserMessage      string                            `json:"user_message,omitempty"`
	Reranked         bool                              `json:"reranked"`
	PrunedListings   int                               `json:"pruned_listings,omitempty"`
}

// SourcingService runs the full search pipeline end to end: safety screen,
// prior-listing prune, provider fan-out, filter, score, rerank, constraint
// adjustment, provenance enrichment, and idempotent persistence. Provider
// failures surface as statuses on the result, never as errors; the only
// error return is a rejected query.
type SourcingService struct {
	fanout      *SearchFanoutService
	registry    *ProviderRegistry
	filter      *ResultFilter
	scorer      *SearchScoringService
	reranker    *QuantumReranker
	constraints *ConstraintScorer
	guard       *QuerySafetyGuard
	embedder    providers.EmbeddingProvider
	listings    repositories.ListingRepository
	sellers     *SellerResolver
	eventBus    providers.EventBus
	analytics   *SearchAnalyticsService
	metrics     *SearchMetrics
	flags       *FeatureFlags
}

// NewSourcingService wires the pipeline. The embedder, event bus, analytics
// service, and metrics may be nil; the stages that need them are skipped.
func NewSourcingService(
	fanout *SearchFanoutService,
	registry *ProviderRegistry,
	listingRepo repositories.ListingRepository,
	sellerRepo repositories.SellerRepository,
	embedder providers.EmbeddingProvider,
	eventBus providers.EventBus,
	analytics *SearchAnalyticsService,
	metrics *SearchMetrics,
	rerankCfg config.RerankConfig,
) *SourcingService {
	return &SourcingService{
		fanout:      fanout,
		registry:    registry,
		filter:      NewResultFilter(),
		scorer:      NewSearchScoringService(),
		reranker:    NewQuantumReranker(rerankCfg),
		constraints: NewConstraintScorer(),
		guard:       NewQuerySafetyGuard(),
		embedder:    embedder,
		listings:    listingRepo,
		sellers:     NewSellerResolver(sellerRepo),
		eventBus:    eventBus,
		analytics:   analytics,
		metrics:     metrics,
		flags:       NewFeatureFlags(),
	}
}

// SearchAndPersist runs one search end to end and upserts the outcome.
// Re-running with the same request id updates existing rows in place and
// never duplicates listings.
func (s *SourcingService) SearchAndPersist(ctx context.Context, intent *entities.SearchIntent, opts SourcingOptions) (*SourcingResult, error) {
	ctx, span := observability.StartSpan(ctx, "sourcing.SearchAndPersist")
	defer span.End()

	if err := s.guard.Check(intent.RawInput, intent.QueryString()); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	intent = orderedBounds(ctx, intent)

	collector := s.metrics.NewCollector(requestID, intent.QueryString(), intent.ProductCategory)

	s.publish(ctx, entities.NewSourcingEvent(requestID, entities.SourcingEventTypeSearchStarted, "", map[string]any{
		"query":    intent.QueryString(),
		"category": intent.ProductCategory,
	}))

	pruned := s.pruneOutOfRange(ctx, requestID, intent)
	collector.RecordPruned(pruned)

	response := s.fanout.SearchAll(ctx, intent, FanoutOptions{
		Providers:  opts.Providers,
		RequestID:  requestID,
		MaxResults: opts.MaxResults,
	})
	collector.RecordFanout(response)
	s.publishProviderOutcomes(ctx, requestID, response.ProviderStatuses)

	if response.AllFailed {
		return s.finishSearch(ctx, collector, &SourcingResult{
			RequestID:        requestID,
			Listings:         []*entities.Listing{},
			ProviderStatuses: response.ProviderStatuses,
			AllFailed:        true,
			UserMessage:      response.UserMessage,
			PrunedListings:   pruned,
		}, intent, opts.SessionID), nil
	}

	kept, stats := s.filter.Apply(response.Results, intent, s.registry.PricedAlways)
	collector.RecordFilter(stats)

	ranked := s.scorer.Rank(kept, intent)
	ranked, reranked := s.rerank(ctx, intent, ranked, opts.RerankTopK)
	collector.RecordRerank(reranked)
	ranked = s.constraints.AdjustRanking(ranked, intent.Constraints)
	s.attachHighlights(ranked, intent)

	listings := s.persistResults(ctx, requestID, ranked)
	collector.RecordPersisted(len(listings))

	userMessage := response.UserMessage
	if len(listings) == 0 && userMessage == "" && stats.PriceFiltered() {
		userMessage = "All results fell outside your price range. Try widening your budget."
	}

	return s.finishSearch(ctx, collector, &SourcingResult{
		RequestID:        requestID,
		Listings:         listings,
		ProviderStatuses: response.ProviderStatuses,
		UserMessage:      userMessage,
		Reranked:         reranked,
		PrunedListings:   pruned,
	}, intent, opts.SessionID), nil
}

// Stream runs the streaming fan-out after the same safety screen. Batches
// are filtered and ranked per provider; nothing is persisted.
func (s *SourcingService) Stream(ctx context.Context, intent *entities.SearchIntent, opts SourcingOptions) (<-chan entities.StreamBatch, error) {
	if err := s.guard.Check(intent.RawInput, intent.QueryString()); err != nil {
		return nil, err
	}
	intent = orderedBounds(ctx, intent)
	return s.fanout.SearchStream(ctx, intent, FanoutOptions{
		Providers:  opts.Providers,
		RequestID:  opts.RequestID,
		MaxResults: opts.MaxResults,
	}), nil
}

// finishSearch publishes the completion event, records analytics, and emits
// the per-search summary.
func (s *SourcingService) finishSearch(ctx context.Context, collector *SearchMetricsCollector, result *SourcingResult, intent *entities.SearchIntent, sessionID string) *SourcingResult {
	s.publish(ctx, entities.NewSourcingEvent(result.RequestID, entities.SourcingEventTypeSearchCompleted, "", map[string]any{
		"result_count": len(result.Listings),
		"all_failed":   result.AllFailed,
		"reranked":     result.Reranked,
	}))

	if s.analytics != nil {
		event := collector.Event(sessionID)
		if s.guard.IsSensitive(intent.ProductCategory) || s.guard.IsSensitive(intent.RawInput) {
			// Sensitive searches are counted but their terms are not
			// retained.
			event.Query = ""
		}
		s.analytics.TrackSearch(ctx, event)
	}

	collector.Finish(ctx)
	return result
}

// orderedBounds returns the intent with price bounds in ascending order,
// copying on swap so the caller's intent is never mutated.
func orderedBounds(ctx context.Context, intent *entities.SearchIntent) *entities.SearchIntent {
	if intent.MinPrice == nil || intent.MaxPrice == nil || *intent.MinPrice <= *intent.MaxPrice {
		return intent
	}
	observability.LoggerFromContext(ctx).Warn().
		Float64("min_price", *intent.MinPrice).
		Float64("max_price", *intent.MaxPrice).
		Msg("price bounds arrived inverted, swapping")
	swapped := *intent
	swapped.MinPrice, swapped.MaxPrice = intent.MaxPrice, intent.MinPrice
	return &swapped
}

// pruneOutOfRange deletes this request's previously persisted listings whose
// price falls outside the current bounds. Quote-style sources are exempt
// since their stored prices are indicative. Pruning is best effort: a
// failure logs and the search continues.
func (s *SourcingService) pruneOutOfRange(ctx context.Context, requestID string, intent *entities.SearchIntent) int {
	if s.listings == nil || (intent.MinPrice == nil && intent.MaxPrice == nil) {
		return 0
	}

	var exempt []string
	for _, provider := range s.registry.All() {
		if !provider.PricedAlways() {
			exempt = append(exempt, provider.Name())
		}
	}

	pruned, err := s.listings.DeleteOutOfRange(ctx, requestID, intent.MinPrice, intent.MaxPrice, exempt)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("request_id", requestID).
			Msg("pruning out-of-range listings failed")
		return 0
	}
	if pruned > 0 {
		observability.LoggerFromContext(ctx).Info().
			Str("request_id", requestID).
			Int("pruned", pruned).
			Msg("removed out-of-range listings from previous runs")
	}
	return pruned
}

// rerank reorders the ranked set by embedding similarity when the reranker
// is enabled and an embedder is wired. Candidates inside the rerank window
// that lack an embedding get one from their title so marketplace results
// compete with vendor results. Any embedding failure skips reranking rather
// than failing the search.
func (s *SourcingService) rerank(ctx context.Context, intent *entities.SearchIntent, ranked []*entities.NormalizedResult, topK int) ([]*entities.NormalizedResult, bool) {
	if s.reranker == nil || !s.reranker.Available() || s.embedder == nil || len(ranked) == 0 {
		return ranked, false
	}

	logger := observability.LoggerFromContext(ctx)
	queryEmbedding, err := s.embedder.EmbedText(ctx, intent.QueryString())
	if err != nil {
		logger.Warn().Err(err).Msg("query embedding failed, skipping rerank")
		return ranked, false
	}

	window := topK
	if window <= 0 {
		window = defaultRerankTopK
	}
	if window > len(ranked) {
		window = len(ranked)
	}
	s.embedCandidates(ctx, ranked, window)

	reranked := s.reranker.Rerank(ctx, queryEmbedding, ranked, topK)
	if s.flags.RerankShadowEnabled() {
		logger.Info().
			Int("candidates", len(reranked)).
			Int("top_moves", topOrderMoves(ranked, reranked, 10)).
			Msg("rerank ran in shadow mode, serving classical order")
		return ranked, false
	}
	return reranked, true
}

// topOrderMoves counts how many of the first n positions hold a different
// result after reranking. Shadow mode logs this as its headline signal.
func topOrderMoves(before, after []*entities.NormalizedResult, n int) int {
	if n > len(before) {
		n = len(before)
	}
	if n > len(after) {
		n = len(after)
	}
	moves := 0
	for i := 0; i < n; i++ {
		if before[i] != after[i] {
			moves++
		}
	}
	return moves
}

// embedCandidates fills missing embeddings for the first window results by
// embedding their titles in one batch.
func (s *SourcingService) embedCandidates(ctx context.Context, ranked []*entities.NormalizedResult, window int) {
	if window > len(ranked) {
		window = len(ranked)
	}

	var texts []string
	var missing []int
	for i := 0; i < window; i++ {
		if len(ranked[i].Embedding) == 0 && ranked[i].Title != "" {
			texts = append(texts, ranked[i].Title)
			missing = append(missing, i)
		}
	}
	if len(texts) == 0 {
		return
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Int("candidates", len(texts)).
			Msg("candidate embedding failed, reranking with existing vectors only")
		return
	}
	for i, idx := range missing {
		ranked[idx].Embedding = vectors[i]
	}
}

// attachHighlights writes display provenance onto each result: the
// product-attribute preferences its text satisfies, budget fit, strong
// ratings, and free shipping.
func (s *SourcingService) attachHighlights(results []*entities.NormalizedResult, intent *entities.SearchIntent) {
	for _, result := range results {
		var highlights []string

		if matched := matchedFeatures(result, intent); len(matched) > 0 {
			result.EnsureProvenance()["matched_features"] = matched
			for _, feature := range matched {
				highlights = append(highlights, "Matches "+feature)
			}
		}
		if result.Price != nil && intent.MaxPrice != nil && *result.Price <= *intent.MaxPrice {
			highlights = append(highlights, fmt.Sprintf("Price $%.2f is within your $%.0f budget", *result.Price, *intent.MaxPrice))
		}
		if result.Rating != nil && *result.Rating >= 4.0 {
			highlights = append(highlights, fmt.Sprintf("Highly rated at %.1f stars", *result.Rating))
		}
		if strings.Contains(strings.ToLower(result.ShippingInfo), "free") {
			highlights = append(highlights, "Free shipping")
		}

		if len(highlights) > 0 {
			result.EnsureProvenance()["highlights"] = highlights
		}
	}
}

// matchedFeatures lists the product-attribute constraints and features the
// result's text satisfies, as "key: value" strings sorted for stable output.
func matchedFeatures(result *entities.NormalizedResult, intent *entities.SearchIntent) []string {
	text := result.SearchableText()
	if text == "" {
		return nil
	}

	var matched []string
	collect := func(attrs map[string]any) {
		for key, value := range attrs {
			keyLower := strings.ToLower(key)
			if _, skip := constraintSkipKeys[keyLower]; skip {
				continue
			}
			if _, ok := productAttributeKeys[keyLower]; !ok {
				continue
			}
			valueText := strings.ToLower(strings.TrimSpace(toString(value)))
			if valueText == "" {
				continue
			}
			for _, part := range compoundValuePattern.Split(valueText, -1) {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				if titleContainsTerm(text, part) {
					matched = append(matched, keyLower+": "+part)
					break
				}
			}
		}
	}
	collect(intent.Constraints)
	collect(intent.Features)

	sort.Strings(matched)
	return matched
}

// persistResults upserts the final ranked results. Each result resolves to
// at most one row per (request, canonical URL); rows created earlier in the
// same pass are reused so same-batch duplicates collapse. A row that fails
// to persist is logged and skipped.
func (s *SourcingService) persistResults(ctx context.Context, requestID string, results []*entities.NormalizedResult) []*entities.Listing {
	listings := make([]*entities.Listing, 0, len(results))
	if s.listings == nil || len(results) == 0 {
		return listings
	}

	logger := observability.LoggerFromContext(ctx)

	// Register every seller key before resolving any thunk so the loader
	// batches the whole pass into one domain query.
	loader := s.sellers.NewLoader()
	thunks := make([]func() (*entities.Seller, error), len(results))
	for i, result := range results {
		if result.MerchantDomain != "" {
			thunks[i] = loader.Load(ctx, SellerKey{Domain: result.MerchantDomain, Name: result.MerchantName})
		}
	}

	byCanonical := make(map[string]*entities.Listing)
	byRawURL := make(map[string]*entities.Listing)

	for i, result := range results {
		if result.CanonicalURL != "" && byCanonical[result.CanonicalURL] != nil {
			// The earlier, higher-ranked sighting already produced
			// this row.
			continue
		}
		if byRawURL[result.URL] != nil {
			continue
		}

		var seller *entities.Seller
		if thunks[i] != nil {
			resolved, err := thunks[i]()
			if err != nil {
				logger.Warn().
					Err(err).
					Str("domain", result.MerchantDomain).
					Msg("seller resolution failed, persisting without seller")
			} else {
				seller = resolved
			}
		}

		listing, err := s.upsertListing(ctx, requestID, result, seller)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("url", result.URL).
				Str("source", result.Source).
				Msg("listing persist failed, skipping")
			continue
		}

		if listing.CanonicalURL != "" {
			byCanonical[listing.CanonicalURL] = listing
		}
		if listing.URL != "" {
			byRawURL[listing.URL] = listing
		}
		listings = append(listings, listing)
	}
	return listings
}

// upsertListing updates the row keyed by (request, canonical URL) in place,
// falling back to the raw URL key, creating the row when neither exists.
// Selection state always survives an update.
func (s *SourcingService) upsertListing(ctx context.Context, requestID string, result *entities.NormalizedResult, seller *entities.Seller) (*entities.Listing, error) {
	existing, err := s.findPersisted(ctx, requestID, result)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.ApplyResult(result)
		if existing.CanonicalURL == "" {
			existing.CanonicalURL = result.CanonicalURL
		}
		if seller != nil {
			existing.SellerID = seller.ID
		}
		if err := s.listings.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	listing := entities.NewListingFromResult(requestID, result)
	if seller != nil {
		listing.SellerID = seller.ID
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// findPersisted looks up a previously persisted row for this result, first
// by canonical URL, then by raw URL for rows written before canonicalization.
func (s *SourcingService) findPersisted(ctx context.Context, requestID string, result *entities.NormalizedResult) (*entities.Listing, error) {
	if result.CanonicalURL != "" {
		listing, err := s.listings.GetByRequestAndCanonicalURL(ctx, requestID, result.CanonicalURL)
		if err == nil {
			return listing, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
	}

	listing, err := s.listings.GetByRequestAndURL(ctx, requestID, result.URL)
	if err == nil {
		return listing, nil
	}
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

// publish sends a lifecycle event to the request channel and the global
// updates channel. Publish failures never fail a search.
func (s *SourcingService) publish(ctx context.Context, event *entities.SourcingEvent) {
	if s.eventBus == nil {
		return
	}
	for _, channel := range []string{providers.GetRequestChannel(event.RequestID), providers.EventChannelSearchUpdates} {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("channel", channel).
				Str("event_type", string(event.EventType)).
				Msg("event publish failed")
		}
	}
}

func (s *SourcingService) publishProviderOutcomes(ctx context.Context, requestID string, statuses []entities.ProviderStatusSnapshot) {
	for _, status := range statuses {
		payload := map[string]any{
			"status":       string(status.Status),
			"result_count": status.ResultCount,
			"latency_ms":   status.LatencyMs,
		}
		if status.Message != "" {
			payload["message"] = status.Message
		}
		s.publish(ctx, entities.NewSourcingEvent(requestID, entities.SourcingEventTypeProviderCompleted, status.ProviderID, payload))
	}
}
