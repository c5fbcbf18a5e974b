package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/pkg/config"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// fakeListingRepo is an in-memory ListingRepository. Rows are stored as
// copies so mutations only land through Create/Update, like a real store.
type fakeListingRepo struct {
	mu          sync.Mutex
	rows        map[string]*entities.Listing
	creates     int
	updates     int
	pruneReturn int
	prunes      []pruneArgs
	createErr   error
}

type pruneArgs struct {
	requestID string
	min, max  *float64
	exempt    []string
}

var _ repositories.ListingRepository = (*fakeListingRepo)(nil)

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{rows: make(map[string]*entities.Listing)}
}

func (f *fakeListingRepo) Create(ctx context.Context, listing *entities.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.creates++
	row := *listing
	f.rows[listing.ID] = &row
	return nil
}

func (f *fakeListingRepo) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		out := *row
		return &out, nil
	}
	return nil, apperrors.NewNotFoundError("listing not found")
}

func (f *fakeListingRepo) GetByRequestAndCanonicalURL(ctx context.Context, requestID, canonicalURL string) (*entities.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if canonicalURL != "" {
		for _, row := range f.rows {
			if row.RequestID == requestID && row.CanonicalURL == canonicalURL {
				out := *row
				return &out, nil
			}
		}
	}
	return nil, apperrors.NewNotFoundError("listing not found")
}

func (f *fakeListingRepo) GetByRequestAndURL(ctx context.Context, requestID, rawURL string) (*entities.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.RequestID == requestID && row.URL == rawURL {
			out := *row
			return &out, nil
		}
	}
	return nil, apperrors.NewNotFoundError("listing not found")
}

func (f *fakeListingRepo) ListByRequest(ctx context.Context, requestID string, filter repositories.ListingFilter) ([]*entities.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var listings []*entities.Listing
	for _, row := range f.rows {
		if row.RequestID != requestID {
			continue
		}
		if filter.Source != "" && row.Source != filter.Source {
			continue
		}
		if filter.SelectedOnly && !row.IsSelected {
			continue
		}
		out := *row
		listings = append(listings, &out)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}

func (f *fakeListingRepo) Update(ctx context.Context, listing *entities.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[listing.ID]; !ok {
		return apperrors.NewNotFoundError("listing not found")
	}
	f.updates++
	row := *listing
	f.rows[listing.ID] = &row
	return nil
}

func (f *fakeListingRepo) SetSelected(ctx context.Context, id string, selected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return apperrors.NewNotFoundError("listing not found")
	}
	row.IsSelected = selected
	return nil
}

func (f *fakeListingRepo) DeleteOutOfRange(ctx context.Context, requestID string, minPrice, maxPrice *float64, exemptSources []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunes = append(f.prunes, pruneArgs{
		requestID: requestID,
		min:       minPrice,
		max:       maxPrice,
		exempt:    append([]string(nil), exemptSources...),
	})
	return f.pruneReturn, nil
}

func (f *fakeListingRepo) seed(listing *entities.Listing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *listing
	f.rows[listing.ID] = &row
}

func (f *fakeListingRepo) row(id string) *entities.Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		out := *row
		return &out
	}
	return nil
}

func (f *fakeListingRepo) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeListingRepo) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func (f *fakeListingRepo) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *fakeListingRepo) lastPrune() pruneArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prunes) == 0 {
		return pruneArgs{}
	}
	return f.prunes[len(f.prunes)-1]
}

func (f *fakeListingRepo) pruneCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prunes)
}

type busRecord struct {
	channel string
	event   *entities.SourcingEvent
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []busRecord
}

var _ providers.EventBus = (*fakeEventBus)(nil)

func (f *fakeEventBus) Publish(ctx context.Context, channel string, event *entities.SourcingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, busRecord{channel: channel, event: event})
	return nil
}

func (f *fakeEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.SourcingEvent, error) {
	return nil, nil
}

func (f *fakeEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (f *fakeEventBus) Close() error { return nil }

func (f *fakeEventBus) typesOn(channel string) []entities.SourcingEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []entities.SourcingEventType
	for _, record := range f.events {
		if record.channel == channel {
			types = append(types, record.event.EventType)
		}
	}
	return types
}

func (f *fakeEventBus) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeEmbedder returns deterministic vectors derived from the text.
type fakeEmbedder struct {
	mu         sync.Mutex
	textCalls  int
	batchCalls int
	err        error
}

var _ providers.EmbeddingProvider = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	if f.err != nil {
		return nil, f.err
	}
	return testEmbedding(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = testEmbedding(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) textCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls
}

func (f *fakeEmbedder) batchCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchCalls
}

func testEmbedding(text string) []float32 {
	vector := make([]float32, 8)
	for i, r := range text {
		vector[i%8] += float32(r%13) / 13
	}
	return vector
}

func merchantListing(title, url string, price float64, merchant, domain string) providers.RawResult {
	return providers.RawResult{
		Title:          title,
		URL:            url,
		Price:          floatPtr(price),
		Currency:       "USD",
		Merchant:       merchant,
		MerchantDomain: domain,
	}
}

type sourcingFixture struct {
	service  *SourcingService
	listings *fakeListingRepo
	sellers  *fakeSellerRepo
	bus      *fakeEventBus
	embedder *fakeEmbedder
}

func newSourcingFixture(t *testing.T, rerank bool, list ...providers.SourcingProvider) *sourcingFixture {
	t.Helper()
	listings := newFakeListingRepo()
	sellers := newFakeSellerRepo()
	bus := &fakeEventBus{}
	embedder := &fakeEmbedder{}

	registry := NewProviderRegistry(list...)
	fanout := NewSearchFanoutService(
		registry,
		NewResultNormalizer(),
		NewResultFilter(),
		NewSearchScoringService(),
		config.SearchConfig{
			ProviderTimeout:       200 * time.Millisecond,
			ProviderStreamTimeout: 2 * time.Second,
			MaxResults:            10,
		},
	)
	service := NewSourcingService(
		fanout,
		registry,
		listings,
		sellers,
		embedder,
		bus,
		nil,
		nil,
		config.RerankConfig{Enabled: rerank, Modes: 4, BlendFactor: 0.7},
	)
	return &sourcingFixture{service: service, listings: listings, sellers: sellers, bus: bus, embedder: embedder}
}

func TestSearchAndPersistEndToEnd(t *testing.T) {
	ebay := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Oak Desk", "https://ebay.com/item/1", 120, "BestWood", "bestwood.com"),
		merchantListing("Pine Desk", "https://ebay.com/item/2", 90, "WoodWorld", "woodworld.com"),
	}}
	kroger := &fakeProvider{name: "kroger", results: []providers.RawResult{
		merchantListing("Oak Desk Deluxe", "https://kroger.com/p/9", 140, "BestWood", "www.bestwood.com"),
	}}

	fx := newSourcingFixture(t, false, ebay, kroger)
	intent := entities.NewSearchIntent("furniture", "desk")
	intent.MaxPrice = floatPtr(200)

	result, err := fx.service.SearchAndPersist(context.Background(), intent, SourcingOptions{RequestID: "req-1", SessionID: "sess-9"})
	require.NoError(t, err)

	assert.Equal(t, "req-1", result.RequestID)
	assert.False(t, result.AllFailed)
	assert.Empty(t, result.UserMessage)
	require.Len(t, result.Listings, 3)
	assert.Equal(t, 3, fx.listings.createCount())

	byTitle := make(map[string]*entities.Listing)
	for _, listing := range result.Listings {
		assert.Equal(t, "req-1", listing.RequestID)
		assert.NotEmpty(t, listing.SellerID)
		assert.NotEmpty(t, listing.CanonicalURL)
		byTitle[listing.Title] = listing
	}

	// Listings come back in rank order.
	scores := make([]float64, 0, len(result.Listings))
	for _, listing := range result.Listings {
		breakdown, ok := listing.Provenance["score"].(*entities.ScoreBreakdown)
		require.True(t, ok)
		scores = append(scores, breakdown.Combined)
	}
	assert.True(t, sort.IsSorted(sort.Reverse(sort.Float64Slice(scores))))

	// One seller row per merchant domain, resolved in one batched query.
	assert.Equal(t, 1, fx.sellers.domainQueryCount())
	assert.Equal(t, 2, fx.sellers.sellerCount())
	assert.Equal(t, byTitle["Oak Desk"].SellerID, byTitle["Oak Desk Deluxe"].SellerID)
	assert.NotEqual(t, byTitle["Oak Desk"].SellerID, byTitle["Pine Desk"].SellerID)

	// Lifecycle events on the request channel, completion mirrored to the
	// global updates channel.
	types := fx.bus.typesOn(providers.GetRequestChannel("req-1"))
	require.NotEmpty(t, types)
	assert.Equal(t, entities.SourcingEventTypeSearchStarted, types[0])
	assert.Equal(t, entities.SourcingEventTypeSearchCompleted, types[len(types)-1])
	assert.Contains(t, types, entities.SourcingEventTypeProviderCompleted)
	assert.Contains(t, fx.bus.typesOn(providers.EventChannelSearchUpdates), entities.SourcingEventTypeSearchCompleted)
}

func TestSearchAndPersistBlockedQuery(t *testing.T) {
	provider := &fakeProvider{name: "ebay"}
	fx := newSourcingFixture(t, false, provider)

	intent := entities.NewSearchIntent("collectibles", "antique")
	intent.RawInput = "antique rifles"

	result, err := fx.service.SearchAndPersist(context.Background(), intent, SourcingOptions{})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, provider.callCount())
	assert.Equal(t, 0, fx.bus.eventCount())
	assert.Equal(t, 0, fx.listings.rowCount())
}

func TestSearchAndPersistSwapsInvertedBounds(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Desk", "https://ebay.com/item/1", 150, "Shop", "shop.com"),
	}}
	fx := newSourcingFixture(t, false, provider)

	intent := entities.NewSearchIntent("furniture", "desk")
	intent.MinPrice = floatPtr(200)
	intent.MaxPrice = floatPtr(100)

	result, err := fx.service.SearchAndPersist(context.Background(), intent, SourcingOptions{RequestID: "req-2"})
	require.NoError(t, err)

	opts := provider.receivedOpts()
	require.NotNil(t, opts.MinPrice)
	require.NotNil(t, opts.MaxPrice)
	assert.Equal(t, 100.0, *opts.MinPrice)
	assert.Equal(t, 200.0, *opts.MaxPrice)

	// The caller's intent is never mutated.
	assert.Equal(t, 200.0, *intent.MinPrice)
	assert.Equal(t, 100.0, *intent.MaxPrice)

	// 150 falls inside the corrected window.
	require.Len(t, result.Listings, 1)

	// The prune also ran with corrected bounds.
	prune := fx.listings.lastPrune()
	assert.Equal(t, "req-2", prune.requestID)
	assert.Equal(t, 100.0, *prune.min)
	assert.Equal(t, 200.0, *prune.max)
}

func TestSearchAndPersistAllFailed(t *testing.T) {
	broken := &fakeProvider{name: "ebay", err: errors.New("boom")}
	limited := &fakeProvider{name: "kroger", err: apperrors.NewRateLimitedError("slow down", nil)}
	fx := newSourcingFixture(t, false, broken, limited)

	result, err := fx.service.SearchAndPersist(context.Background(), entities.NewSearchIntent("tools", "drill"), SourcingOptions{RequestID: "req-3"})
	require.NoError(t, err)

	assert.True(t, result.AllFailed)
	assert.NotEmpty(t, result.UserMessage)
	assert.Empty(t, result.Listings)
	assert.Equal(t, 0, fx.listings.createCount())
	require.Len(t, result.ProviderStatuses, 2)

	types := fx.bus.typesOn(providers.GetRequestChannel("req-3"))
	require.NotEmpty(t, types)
	assert.Equal(t, entities.SourcingEventTypeSearchCompleted, types[len(types)-1])
}

func TestSearchAndPersistRerunUpdatesInPlace(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Oak Desk", "https://ebay.com/item/1", 120, "BestWood", "bestwood.com"),
	}}
	fx := newSourcingFixture(t, false, provider)
	intent := entities.NewSearchIntent("furniture", "desk")

	first, err := fx.service.SearchAndPersist(context.Background(), intent, SourcingOptions{RequestID: "req-4"})
	require.NoError(t, err)
	require.Len(t, first.Listings, 1)
	listingID := first.Listings[0].ID

	// The caller selects the listing between runs.
	require.NoError(t, fx.listings.SetSelected(context.Background(), listingID, true))

	// The provider's price moved.
	provider.results = []providers.RawResult{
		merchantListing("Oak Desk", "https://ebay.com/item/1", 110, "BestWood", "bestwood.com"),
	}

	second, err := fx.service.SearchAndPersist(context.Background(), intent, SourcingOptions{RequestID: "req-4"})
	require.NoError(t, err)
	require.Len(t, second.Listings, 1)

	assert.Equal(t, listingID, second.Listings[0].ID, "rerun updates the same row")
	assert.Equal(t, 1, fx.listings.createCount())
	assert.Equal(t, 1, fx.listings.rowCount())

	stored := fx.listings.row(listingID)
	require.NotNil(t, stored)
	assert.True(t, stored.IsSelected, "selection survives the rerun")
	require.NotNil(t, stored.Price)
	assert.Equal(t, 110.0, *stored.Price)
}

func TestSearchAndPersistBackfillsLegacyRow(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Oak Desk", "https://ebay.com/item/1", 120, "BestWood", "bestwood.com"),
	}}
	fx := newSourcingFixture(t, false, provider)

	// A row persisted before canonicalization: raw URL only.
	now := time.Now().UTC()
	fx.listings.seed(&entities.Listing{
		ID:         "legacy-1",
		RequestID:  "req-5",
		Title:      "Oak Desk (stale title)",
		URL:        "https://ebay.com/item/1",
		Source:     "ebay",
		IsSelected: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})

	result, err := fx.service.SearchAndPersist(context.Background(), entities.NewSearchIntent("furniture", "desk"), SourcingOptions{RequestID: "req-5"})
	require.NoError(t, err)
	require.Len(t, result.Listings, 1)
	assert.Equal(t, "legacy-1", result.Listings[0].ID)
	assert.Equal(t, 0, fx.listings.createCount())
	assert.Equal(t, 1, fx.listings.updateCount())

	stored := fx.listings.row("legacy-1")
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.CanonicalURL, "canonical key is backfilled")
	assert.Equal(t, "Oak Desk", stored.Title)
	assert.True(t, stored.IsSelected)
}

func TestSearchAndPersistPrunesWithQuoteExemption(t *testing.T) {
	priced := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Desk", "https://ebay.com/item/1", 50, "Shop", "shop.com"),
	}}
	quoted := &fakeProvider{name: "vendordir", unpriced: true}
	fx := newSourcingFixture(t, false, priced, quoted)
	fx.listings.pruneReturn = 2

	intent := entities.NewSearchIntent("furniture", "desk")
	intent.MinPrice = floatPtr(10)
	intent.MaxPrice = floatPtr(100)

	result, err := fx.service.SearchAndPersist(context.Background(), intent, SourcingOptions{RequestID: "req-6"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.PrunedListings)

	prune := fx.listings.lastPrune()
	assert.Equal(t, "req-6", prune.requestID)
	assert.Equal(t, []string{"vendordir"}, prune.exempt)
}

func TestSearchAndPersistNoBoundsSkipsPrune(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Desk", "https://ebay.com/item/1", 50, "Shop", "shop.com"),
	}}
	fx := newSourcingFixture(t, false, provider)

	_, err := fx.service.SearchAndPersist(context.Background(), entities.NewSearchIntent("furniture", "desk"), SourcingOptions{RequestID: "req-7"})
	require.NoError(t, err)
	assert.Equal(t, 0, fx.listings.pruneCount())
}

func TestSearchAndPersistRerankAnnotates(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Oak Desk", "https://ebay.com/item/1", 120, "Shop", "shop.com"),
		merchantListing("Pine Desk", "https://ebay.com/item/2", 90, "Shop", "shop.com"),
	}}
	fx := newSourcingFixture(t, true, provider)

	result, err := fx.service.SearchAndPersist(context.Background(), entities.NewSearchIntent("furniture", "desk"), SourcingOptions{RequestID: "req-8"})
	require.NoError(t, err)

	assert.True(t, result.Reranked)
	assert.Equal(t, 1, fx.embedder.textCallCount(), "one query embedding")
	assert.Equal(t, 1, fx.embedder.batchCallCount(), "one batch for all candidate titles")
	require.Len(t, result.Listings, 2)
	for _, listing := range result.Listings {
		breakdown, ok := listing.Provenance["score"].(*entities.ScoreBreakdown)
		require.True(t, ok)
		require.NotNil(t, breakdown.BlendedScore)
		assert.True(t, breakdown.Reranked())
	}
}

func TestSearchAndPersistRerankShadowServesClassicalOrder(t *testing.T) {
	t.Setenv("FEATURE_RERANK_SHADOW", "true")

	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Oak Desk", "https://ebay.com/item/1", 120, "Shop", "shop.com"),
		merchantListing("Pine Desk", "https://ebay.com/item/2", 90, "Shop", "shop.com"),
	}}
	fx := newSourcingFixture(t, true, provider)

	result, err := fx.service.SearchAndPersist(context.Background(), entities.NewSearchIntent("furniture", "desk"), SourcingOptions{RequestID: "req-8s"})
	require.NoError(t, err)

	assert.False(t, result.Reranked, "shadow mode never changes the served order")
	assert.Equal(t, 1, fx.embedder.textCallCount(), "the shadow rerank still runs")
	require.Len(t, result.Listings, 2)
	for _, listing := range result.Listings {
		breakdown, ok := listing.Provenance["score"].(*entities.ScoreBreakdown)
		require.True(t, ok)
		assert.NotNil(t, breakdown.BlendedScore, "shadow scores stay on the provenance")
	}
}

func TestSearchAndPersistRerankSkipsOnEmbeddingFailure(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Oak Desk", "https://ebay.com/item/1", 120, "Shop", "shop.com"),
	}}
	fx := newSourcingFixture(t, true, provider)
	fx.embedder.err = errors.New("embedding quota spent")

	result, err := fx.service.SearchAndPersist(context.Background(), entities.NewSearchIntent("furniture", "desk"), SourcingOptions{RequestID: "req-9"})
	require.NoError(t, err)

	assert.False(t, result.Reranked)
	require.Len(t, result.Listings, 1, "the search still persists without reranking")
}

func TestSearchAndPersistRecordsAnalytics(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Desk", "https://ebay.com/item/1", 50, "Shop", "shop.com"),
	}}

	listings := newFakeListingRepo()
	sellers := newFakeSellerRepo()
	analyticsRepo := &fakeAnalyticsRepo{events: make(chan *entities.SearchEvent, 1)}

	registry := NewProviderRegistry(provider)
	fanout := NewSearchFanoutService(
		registry,
		NewResultNormalizer(),
		NewResultFilter(),
		NewSearchScoringService(),
		config.SearchConfig{ProviderTimeout: 200 * time.Millisecond, ProviderStreamTimeout: 2 * time.Second, MaxResults: 10},
	)
	service := NewSourcingService(
		fanout,
		registry,
		listings,
		sellers,
		nil,
		nil,
		NewSearchAnalyticsService(analyticsRepo),
		nil,
		config.RerankConfig{},
	)

	_, err := service.SearchAndPersist(context.Background(), entities.NewSearchIntent("furniture", "desk"), SourcingOptions{RequestID: "req-10", SessionID: "sess-1"})
	require.NoError(t, err)

	select {
	case event := <-analyticsRepo.events:
		assert.Equal(t, "req-10", event.RequestID)
		assert.Equal(t, "sess-1", event.SessionID)
		assert.NotEmpty(t, event.Query)
		assert.Equal(t, "furniture", event.Category)
		assert.Equal(t, 1, event.ProvidersTotal)
		assert.Equal(t, 1, event.ProvidersOK)
		assert.Equal(t, 1, event.ResultCount)
	case <-time.After(2 * time.Second):
		t.Fatal("analytics event was not recorded")
	}
}

func TestSearchAndPersistRedactsSensitiveQueries(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Vitamin D", "https://ebay.com/item/1", 12, "Shop", "shop.com"),
	}}

	listings := newFakeListingRepo()
	sellers := newFakeSellerRepo()
	analyticsRepo := &fakeAnalyticsRepo{events: make(chan *entities.SearchEvent, 1)}

	registry := NewProviderRegistry(provider)
	fanout := NewSearchFanoutService(
		registry,
		NewResultNormalizer(),
		NewResultFilter(),
		NewSearchScoringService(),
		config.SearchConfig{ProviderTimeout: 200 * time.Millisecond, ProviderStreamTimeout: 2 * time.Second, MaxResults: 10},
	)
	service := NewSourcingService(
		fanout,
		registry,
		listings,
		sellers,
		nil,
		nil,
		NewSearchAnalyticsService(analyticsRepo),
		nil,
		config.RerankConfig{},
	)

	_, err := service.SearchAndPersist(context.Background(), entities.NewSearchIntent("pharmacy", "vitamin d"), SourcingOptions{RequestID: "req-11"})
	require.NoError(t, err)

	select {
	case event := <-analyticsRepo.events:
		assert.Empty(t, event.Query, "sensitive search terms are not retained")
		assert.Equal(t, "pharmacy", event.Category)
	case <-time.After(2 * time.Second):
		t.Fatal("analytics event was not recorded")
	}
}

func TestAttachHighlights(t *testing.T) {
	fx := newSourcingFixture(t, false, &fakeProvider{name: "ebay"})

	intent := entities.NewSearchIntent("furniture", "dresser")
	intent.MaxPrice = floatPtr(100)
	intent.Constraints = map[string]any{
		"material":  "oak",
		"color":     "red or blue",
		"recipient": "partner",
	}

	result := &entities.NormalizedResult{
		Title:        "Red Oak Dresser",
		Price:        floatPtr(80),
		Rating:       floatPtr(4.5),
		ShippingInfo: "Free shipping over $35",
	}
	fx.service.attachHighlights([]*entities.NormalizedResult{result}, intent)

	matched, ok := result.Provenance["matched_features"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"color: red", "material: oak"}, matched)

	highlights, ok := result.Provenance["highlights"].([]string)
	require.True(t, ok)
	assert.Contains(t, highlights, "Matches material: oak")
	assert.Contains(t, highlights, "Price $80.00 is within your $100 budget")
	assert.Contains(t, highlights, "Highly rated at 4.5 stars")
	assert.Contains(t, highlights, "Free shipping")
}

// Normalization and highlighting each write matched_features: the normalizer
// from provider-observed perks, the highlighter from intent attributes. Run
// back to back, the intent-driven matches win.
func TestAttachHighlightsAfterNormalization(t *testing.T) {
	fx := newSourcingFixture(t, false, &fakeProvider{name: "ebay"})
	normalizer := NewResultNormalizer()

	raw := providers.RawResult{
		Title:        "Red Oak Dresser",
		URL:          "https://example.com/dresser",
		Price:        floatPtr(80),
		Currency:     "USD",
		Rating:       floatPtr(4.6),
		ShippingInfo: "Free shipping",
	}
	results := normalizer.Normalize(entities.SourceMockShop, []providers.RawResult{raw})
	require.Len(t, results, 1)

	features, ok := results[0].Provenance["matched_features"].([]string)
	require.True(t, ok)
	assert.Contains(t, features, "Highly rated (4.6★)")

	intent := entities.NewSearchIntent("furniture", "dresser")
	intent.Constraints = map[string]any{"material": "oak"}
	fx.service.attachHighlights(results, intent)

	features, ok = results[0].Provenance["matched_features"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"material: oak"}, features)

	highlights, ok := results[0].Provenance["highlights"].([]string)
	require.True(t, ok)
	assert.Contains(t, highlights, "Matches material: oak")
}

func TestStreamScreensAndDelegates(t *testing.T) {
	provider := &fakeProvider{name: "ebay", results: []providers.RawResult{
		merchantListing("Desk", "https://ebay.com/item/1", 50, "Shop", "shop.com"),
	}}
	fx := newSourcingFixture(t, false, provider)

	blocked := entities.NewSearchIntent("watches", "watch")
	blocked.RawInput = "counterfeit watches"
	_, err := fx.service.Stream(context.Background(), blocked, SourcingOptions{})
	assert.Error(t, err)

	stream, err := fx.service.Stream(context.Background(), entities.NewSearchIntent("furniture", "desk"), SourcingOptions{})
	require.NoError(t, err)

	var batches []entities.StreamBatch
	for batch := range stream {
		batches = append(batches, batch)
	}
	require.Len(t, batches, 1)
	assert.Equal(t, "ebay", batches[0].Provider)
	assert.Equal(t, 0, batches[0].ProvidersRemaining)
	require.Len(t, batches[0].Results, 1)
}

// fakeAnalyticsRepo hands each logged event to the test through a channel so
// the fire-and-forget write can be awaited deterministically.
type fakeAnalyticsRepo struct {
	events chan *entities.SearchEvent
}

var _ repositories.SearchAnalyticsRepository = (*fakeAnalyticsRepo)(nil)

func (f *fakeAnalyticsRepo) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	f.events <- event
	return nil
}

func (f *fakeAnalyticsRepo) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	return nil, nil
}

func (f *fakeAnalyticsRepo) GetRecentRequestIDs(ctx context.Context, limit int) ([]string, error) {
	return nil, nil
}
