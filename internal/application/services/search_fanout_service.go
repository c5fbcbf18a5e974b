package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/infrastructure/observability"
	"github.com/dealscout/sourcing/pkg/config"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
	"github.com/dealscout/sourcing/pkg/utils"
)

// User-facing messages for searches that produced nothing. Set only when the
// response carries zero results; partial failures with results stay silent.
const (
	messageQuotaExhausted = "Search providers have exhausted their quota. Please try again later or contact support."
	messageRateLimited    = "Search is temporarily rate-limited. Please wait a moment and try again."
	messageAllFailed      = "Unable to search at this time. Please try again later."
)

// FanoutOptions tunes one fan-out invocation.
type FanoutOptions struct {
	// Providers restricts the fan-out to the named sources. Empty means
	// every registered provider.
	Providers []string

	// RequestID correlates the response with upstream logging. Generated
	// when empty.
	RequestID string

	// MaxResults overrides the per-provider result cap. Zero means the
	// configured default.
	MaxResults int
}

// SearchFanoutService calls every selected provider in parallel, normalizes
// each batch, and deduplicates across providers by canonical URL. One
// provider failing, timing out, or hitting a quota never fails the search;
// the outcome is recorded per provider instead.
//
// The blocking path returns raw aggregation for the pipeline to filter and
// rank. The streaming path filters and ranks each batch before emitting it,
// since batches go straight to the client as they complete.
type SearchFanoutService struct {
	registry   *ProviderRegistry
	normalizer *ResultNormalizer
	filter     *ResultFilter
	scorer     *SearchScoringService

	providerTimeout time.Duration
	streamTimeout   time.Duration
	maxResults      int
}

// NewSearchFanoutService creates the fan-out coordinator.
func NewSearchFanoutService(
	registry *ProviderRegistry,
	normalizer *ResultNormalizer,
	filter *ResultFilter,
	scorer *SearchScoringService,
	cfg config.SearchConfig,
) *SearchFanoutService {
	return &SearchFanoutService{
		registry:        registry,
		normalizer:      normalizer,
		filter:          filter,
		scorer:          scorer,
		providerTimeout: cfg.ProviderTimeout,
		streamTimeout:   cfg.ProviderStreamTimeout,
		maxResults:      cfg.MaxResults,
	}
}

// providerOutcome pairs one provider's raw batch with its status snapshot.
type providerOutcome struct {
	provider string
	raw      []providers.RawResult
	status   entities.ProviderStatusSnapshot
}

// SearchAll fans out to the selected providers and blocks until every one
// completes or times out. Results are normalized and deduplicated in
// provider registration order, so the earlier provider wins ties.
func (s *SearchFanoutService) SearchAll(ctx context.Context, intent *entities.SearchIntent, opts FanoutOptions) *entities.AggregatedSearchResponse {
	logger := observability.LoggerFromContext(ctx)
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	selected := s.registry.Select(opts.Providers)
	started := time.Now()

	outcomes := make([]providerOutcome, len(selected))
	var wg sync.WaitGroup
	for i, provider := range selected {
		wg.Add(1)
		go func(slot int, p providers.SourcingProvider) {
			defer wg.Done()
			outcomes[slot] = s.callProvider(ctx, p, intent, opts.MaxResults)
		}(i, provider)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var unique []*entities.NormalizedResult
	statuses := make([]entities.ProviderStatusSnapshot, 0, len(outcomes))
	succeeded := 0
	for _, outcome := range outcomes {
		statuses = append(statuses, outcome.status)
		if outcome.status.Failed() {
			logger.Warn().
				Str("request_id", requestID).
				Str("provider", outcome.provider).
				Str("status", string(outcome.status.Status)).
				Str("message", outcome.status.Message).
				Msg("provider search failed")
			continue
		}
		succeeded++
		normalized := s.normalizer.Normalize(outcome.provider, outcome.raw)
		unique = append(unique, s.dedupe(normalized, seen)...)
	}

	allFailed := succeeded == 0

	response := &entities.AggregatedSearchResponse{
		RequestID:        requestID,
		Results:          unique,
		ProviderStatuses: statuses,
		AllFailed:        allFailed,
		UserMessage:      fanoutUserMessage(statuses, allFailed, len(unique)),
		GeneratedAt:      time.Now().UTC(),
	}

	logger.Info().
		Str("request_id", requestID).
		Int("providers", len(selected)).
		Int("succeeded", succeeded).
		Int("unique_results", len(unique)).
		Dur("duration", time.Since(started)).
		Msg("search fan-out complete")

	return response
}

// SearchStream fans out to the selected providers and emits each provider's
// batch as it completes, already deduplicated against earlier batches,
// filtered, and ranked. The channel closes after the final batch; the last
// emission has ProvidersRemaining == 0. Providers still in flight when the
// stream deadline passes are flushed as timeouts.
func (s *SearchFanoutService) SearchStream(ctx context.Context, intent *entities.SearchIntent, opts FanoutOptions) <-chan entities.StreamBatch {
	out := make(chan entities.StreamBatch)
	go s.runStream(ctx, intent, opts, out)
	return out
}

func (s *SearchFanoutService) runStream(ctx context.Context, intent *entities.SearchIntent, opts FanoutOptions, out chan<- entities.StreamBatch) {
	defer close(out)

	logger := observability.LoggerFromContext(ctx)
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	selected := s.registry.Select(opts.Providers)
	if len(selected) == 0 {
		return
	}

	streamCtx, cancel := context.WithTimeout(ctx, s.streamTimeout)
	defer cancel()

	// Buffered so provider goroutines never block after an early exit.
	completions := make(chan providerOutcome, len(selected))
	pending := make(map[string]bool, len(selected))
	for _, provider := range selected {
		pending[provider.Name()] = true
		go func(p providers.SourcingProvider) {
			completions <- s.callProvider(streamCtx, p, intent, opts.MaxResults)
		}(provider)
	}

	seen := make(map[string]struct{})
	remaining := len(selected)
	for remaining > 0 {
		select {
		case outcome := <-completions:
			delete(pending, outcome.provider)
			remaining--

			var ranked []*entities.NormalizedResult
			if !outcome.status.Failed() {
				normalized := s.normalizer.Normalize(outcome.provider, outcome.raw)
				unique := s.dedupe(normalized, seen)
				filtered, _ := s.filter.Apply(unique, intent, s.registry.PricedAlways)
				ranked = s.scorer.Rank(filtered, intent)
			} else {
				logger.Warn().
					Str("request_id", requestID).
					Str("provider", outcome.provider).
					Str("status", string(outcome.status.Status)).
					Msg("provider stream batch failed")
			}

			batch := entities.StreamBatch{
				Provider:           outcome.provider,
				Results:            ranked,
				Status:             outcome.status,
				ProvidersRemaining: remaining,
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}

		case <-streamCtx.Done():
			for name := range pending {
				remaining--
				batch := entities.StreamBatch{
					Provider: name,
					Status: entities.ProviderStatusSnapshot{
						ProviderID: name,
						Status:     entities.ProviderStatusTimeout,
						Message:    "Search timed out",
						LatencyMs:  s.streamTimeout.Milliseconds(),
					},
					ProvidersRemaining: remaining,
				}
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
			return
		}
	}
}

// callProvider runs one provider with its own deadline and translates the
// outcome into a status snapshot. The vendor directory gets the short intent
// phrase as its query with the full query as blended context.
func (s *SearchFanoutService) callProvider(ctx context.Context, provider providers.SourcingProvider, intent *entities.SearchIntent, maxResults int) providerOutcome {
	name := provider.Name()
	query := intent.QueryString()

	if maxResults <= 0 {
		maxResults = s.maxResults
	}
	searchOpts := providers.SearchOptions{
		MaxResults: maxResults,
		MinPrice:   intent.MinPrice,
		MaxPrice:   intent.MaxPrice,
	}

	if name == entities.SourceVendorDirectory {
		if vendorQuery := intent.VendorQuery(); vendorQuery != "" && vendorQuery != query {
			searchOpts.ContextQuery = query
			query = vendorQuery
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	started := time.Now()
	raw, err := provider.Search(callCtx, query, searchOpts)
	latency := time.Since(started).Milliseconds()

	if err != nil {
		return providerOutcome{provider: name, status: failureSnapshot(name, err, latency)}
	}
	return providerOutcome{
		provider: name,
		raw:      raw,
		status: entities.ProviderStatusSnapshot{
			ProviderID:  name,
			Status:      entities.ProviderStatusOK,
			ResultCount: len(raw),
			LatencyMs:   latency,
		},
	}
}

// failureSnapshot classifies a provider error into a status. Typed errors
// win; raw HTTP hints in the message cover providers that surface upstream
// bodies verbatim. Messages are redacted and capped before they can reach a
// status payload.
func failureSnapshot(name string, err error, latencyMs int64) entities.ProviderStatusSnapshot {
	detail := truncateMessage(utils.RedactSecrets(err.Error()), 100)

	snapshot := entities.ProviderStatusSnapshot{ProviderID: name, LatencyMs: latencyMs}
	switch {
	case apperrors.IsQuotaExhausted(err) || strings.Contains(detail, "402") || strings.Contains(detail, "Payment Required"):
		snapshot.Status = entities.ProviderStatusExhausted
		snapshot.Message = "API quota exhausted"
	case apperrors.IsRateLimited(err) || strings.Contains(detail, "429") || strings.Contains(detail, "Too Many Requests"):
		snapshot.Status = entities.ProviderStatusRateLimited
		snapshot.Message = "Rate limit exceeded"
	case apperrors.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded):
		snapshot.Status = entities.ProviderStatusTimeout
		snapshot.Message = "Search timed out"
	default:
		snapshot.Status = entities.ProviderStatusError
		snapshot.Message = "Search failed: " + detail
	}
	return snapshot
}

// dedupe keeps the first occurrence of each identity key and drops results
// whose URL scheme is outside the allowed set. The seen map is shared across
// batches so later providers cannot resurrect an already-emitted listing.
func (s *SearchFanoutService) dedupe(results []*entities.NormalizedResult, seen map[string]struct{}) []*entities.NormalizedResult {
	kept := make([]*entities.NormalizedResult, 0, len(results))
	for _, result := range results {
		if !allowedResultURL(result.URL) {
			continue
		}
		key := result.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, result)
	}
	return kept
}

// allowedResultURL accepts only web and contact links; anything else
// (javascript:, data:, file:) is dropped before it can reach a client.
func allowedResultURL(url string) bool {
	lowered := strings.ToLower(url)
	return strings.HasPrefix(lowered, "http://") ||
		strings.HasPrefix(lowered, "https://") ||
		strings.HasPrefix(lowered, "mailto:")
}

// fanoutUserMessage picks the user-facing explanation for an empty response.
// Precedence: every provider out of quota, then any rate limit, then total
// failure. Empty-but-healthy searches return no message.
func fanoutUserMessage(statuses []entities.ProviderStatusSnapshot, allFailed bool, uniqueCount int) string {
	if uniqueCount > 0 {
		return ""
	}
	if len(statuses) == 0 {
		return messageAllFailed
	}

	allExhausted := true
	anyRateLimited := false
	for _, status := range statuses {
		if status.Status != entities.ProviderStatusExhausted {
			allExhausted = false
		}
		if status.Status == entities.ProviderStatusRateLimited {
			anyRateLimited = true
		}
	}

	switch {
	case allExhausted:
		return messageQuotaExhausted
	case anyRateLimited:
		return messageRateLimited
	case allFailed:
		return messageAllFailed
	}
	return ""
}

func truncateMessage(message string, limit int) string {
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return string(runes[:limit])
}
