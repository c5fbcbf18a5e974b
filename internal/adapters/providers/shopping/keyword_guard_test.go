package shopping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/internal/domain/providers"
)

func TestIsEventQuery(t *testing.T) {
	assert.True(t, isEventQuery("taylor swift concert tickets"))
	assert.True(t, isEventQuery("NBA game tonight"))
	assert.True(t, isEventQuery("Broadway show"))
	assert.False(t, isEventQuery("wireless headphones"))
	assert.False(t, isEventQuery("organic milk"))
	// "matches" is not "match"; whole-word only
	assert.False(t, isEventQuery("matches for camping"))
}

func TestIsGroceryQuery(t *testing.T) {
	assert.True(t, isGroceryQuery("organic whole milk"))
	assert.True(t, isGroceryQuery("gluten free bread"))
	// Multi-word keywords match as phrases
	assert.True(t, isGroceryQuery("vanilla ice cream tub"))
	assert.True(t, isGroceryQuery("paper towel rolls"))
	assert.False(t, isGroceryQuery("gaming laptop"))
	// "toilet" alone is not a keyword, only the "toilet paper" phrase
	assert.False(t, isGroceryQuery("toilet seat"))
}

func TestTicketmasterAdapter_SkipsNonEventQueries(t *testing.T) {
	adapter := NewTicketmasterAdapter("key")

	results, err := adapter.Search(context.Background(), "mechanical keyboard", providers.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKrogerAdapter_SkipsNonGroceryQueries(t *testing.T) {
	adapter := NewKrogerAdapter("id", "secret", "")

	results, err := adapter.Search(context.Background(), "mountain bike", providers.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
