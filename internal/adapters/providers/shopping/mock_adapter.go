package shopping

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/dealscout/sourcing/internal/domain/providers"
)

// mockMerchants is the fixed merchant pool for generated results
var mockMerchants = []string{
	"Amazon", "Walmart", "Target", "eBay", "Best Buy", "Costco", "Kohl's", "Macy's",
}

// MockShopAdapter returns deterministic sample results for local development
// and tests. Results are seeded from an FNV hash of the query, so the same
// query always produces the same batch.
type MockShopAdapter struct{}

// NewMockShopAdapter creates a mock shopping provider
func NewMockShopAdapter() *MockShopAdapter {
	return &MockShopAdapter{}
}

// Name returns the source identifier
func (a *MockShopAdapter) Name() string {
	return "mockshop"
}

// PricedAlways reports that generated results always carry a concrete price
func (a *MockShopAdapter) PricedAlways() bool {
	return true
}

// Search generates 8 to 15 deterministic results for the query
func (a *MockShopAdapter) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]providers.RawResult, error) {
	hasher := fnv.New32a()
	hasher.Write([]byte(query))
	seed := hasher.Sum32()
	rng := rand.New(rand.NewSource(int64(seed)))

	count := 8 + rng.Intn(8)
	results := make([]providers.RawResult, 0, count)
	for i := 0; i < count; i++ {
		price := math.Round((15+rng.Float64()*135)*100) / 100
		rating := math.Round((3.5+rng.Float64()*1.5)*10) / 10
		reviews := 10 + rng.Intn(4991)

		edition := "Standard"
		if i%3 == 0 {
			edition = "Premium"
		}

		shipping := "Ships in 2-3 days"
		if rng.Float64() > 0.3 {
			shipping = "Free shipping"
		}

		productID := uint64(seed) + uint64(i)
		results = append(results, providers.RawResult{
			Title:        fmt.Sprintf("%s - Style %c %s Edition", query, rune('A'+i), edition),
			Price:        &price,
			Currency:     "USD",
			Merchant:     mockMerchants[rng.Intn(len(mockMerchants))],
			URL:          fmt.Sprintf("https://example.com/product/%d", productID),
			ImageURL:     fmt.Sprintf("https://picsum.photos/seed/%d/300/300", productID),
			Rating:       &rating,
			ReviewsCount: &reviews,
			ShippingInfo: shipping,
			Source:       a.Name(),
		})
	}

	return results, nil
}
