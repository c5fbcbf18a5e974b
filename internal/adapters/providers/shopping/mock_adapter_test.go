package shopping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/internal/domain/providers"
)

func TestMockShopAdapter_Deterministic(t *testing.T) {
	adapter := NewMockShopAdapter()

	first, err := adapter.Search(context.Background(), "wireless headphones", providers.SearchOptions{})
	require.NoError(t, err)
	second, err := adapter.Search(context.Background(), "wireless headphones", providers.SearchOptions{})
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Title, second[i].Title)
		assert.Equal(t, *first[i].Price, *second[i].Price)
		assert.Equal(t, first[i].Merchant, second[i].Merchant)
		assert.Equal(t, first[i].URL, second[i].URL)
	}
}

func TestMockShopAdapter_ResultShape(t *testing.T) {
	adapter := NewMockShopAdapter()

	results, err := adapter.Search(context.Background(), "desk lamp", providers.SearchOptions{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(results), 8)
	assert.LessOrEqual(t, len(results), 15)

	for _, r := range results {
		require.NotNil(t, r.Price)
		assert.GreaterOrEqual(t, *r.Price, 15.0)
		assert.LessOrEqual(t, *r.Price, 150.0)
		require.NotNil(t, r.Rating)
		assert.GreaterOrEqual(t, *r.Rating, 3.5)
		assert.LessOrEqual(t, *r.Rating, 5.0)
		assert.Equal(t, "mockshop", r.Source)
		assert.Contains(t, r.Title, "desk lamp")
		assert.NotEmpty(t, r.URL)
	}
}

func TestMockShopAdapter_DifferentQueriesDiffer(t *testing.T) {
	adapter := NewMockShopAdapter()

	a, err := adapter.Search(context.Background(), "running shoes", providers.SearchOptions{})
	require.NoError(t, err)
	b, err := adapter.Search(context.Background(), "espresso machine", providers.SearchOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, a[0].URL, b[0].URL)
}

func TestMockShopAdapter_PricedAlways(t *testing.T) {
	assert.True(t, NewMockShopAdapter().PricedAlways())
}
