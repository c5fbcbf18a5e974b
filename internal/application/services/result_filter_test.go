package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestShouldInclude_NilPriceAlwaysPasses(t *testing.T) {
	f := NewResultFilter()

	bounds := []struct {
		min, max *float64
	}{
		{nil, nil},
		{floatPtr(10), nil},
		{nil, floatPtr(100)},
		{floatPtr(10), floatPtr(100)},
		{floatPtr(0), floatPtr(0)},
	}
	for _, b := range bounds {
		assert.True(t, f.ShouldInclude(nil, true, b.min, b.max))
		assert.True(t, f.ShouldInclude(nil, false, b.min, b.max))
	}
}

func TestShouldInclude_UnpricedSourcePasses(t *testing.T) {
	f := NewResultFilter()

	// pricedAlways=false declares the adapter's results quote-based
	assert.True(t, f.ShouldInclude(floatPtr(9999), false, floatPtr(10), floatPtr(100)))
}

func TestShouldInclude_Bounds(t *testing.T) {
	f := NewResultFilter()

	tests := []struct {
		name     string
		price    float64
		min, max *float64
		want     bool
	}{
		{"no bounds", 50, nil, nil, true},
		{"in range", 50, floatPtr(10), floatPtr(100), true},
		{"below min", 5, floatPtr(10), floatPtr(100), false},
		{"above max", 150, floatPtr(10), floatPtr(100), false},
		{"at min", 10, floatPtr(10), floatPtr(100), true},
		{"at max", 100, floatPtr(10), floatPtr(100), true},
		{"min only below", 5, floatPtr(10), nil, false},
		{"min only above", 500, floatPtr(10), nil, true},
		{"max only below", 5, nil, floatPtr(100), true},
		{"max only above", 150, nil, floatPtr(100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldInclude(floatPtr(tt.price), true, tt.min, tt.max))
		})
	}
}

func TestExcludedByLists(t *testing.T) {
	f := NewResultFilter()

	assert.True(t, f.ExcludedByLists("Kindle eBook Edition", "Amazon", "amazon.com", []string{"ebook"}, nil))
	assert.True(t, f.ExcludedByLists("Leather Wallet", "Amazon", "amazon.com", nil, []string{"amazon"}))
	assert.True(t, f.ExcludedByLists("Leather Wallet", "Shop", "shop.amazon.co.uk", nil, []string{"amazon"}))
	assert.False(t, f.ExcludedByLists("Leather Wallet", "Etsy Seller", "etsy.com", []string{"digital"}, []string{"amazon"}))
	assert.False(t, f.ExcludedByLists("Leather Wallet", "Etsy Seller", "etsy.com", nil, nil))
}

func TestExcludedByConstraints(t *testing.T) {
	f := NewResultFilter()

	// Attribute constraints title-match; compound values satisfy on any part.
	assert.False(t, f.ExcludedByConstraints("14k Gold Ring", map[string]any{"material": "gold or platinum"}))
	assert.False(t, f.ExcludedByConstraints("Platinum Band", map[string]any{"material": "gold or platinum"}))
	assert.True(t, f.ExcludedByConstraints("Sterling Silver Ring", map[string]any{"material": "gold or platinum"}))

	// Buyer-context keys never exclude by title.
	assert.False(t, f.ExcludedByConstraints("Sterling Silver Ring", map[string]any{"occasion": "anniversary"}))
	assert.False(t, f.ExcludedByConstraints("Sterling Silver Ring", map[string]any{"budget": "500"}))

	// Unknown keys are ignored rather than matched.
	assert.False(t, f.ExcludedByConstraints("Sterling Silver Ring", map[string]any{"vibe": "classy"}))

	// "No" style answers do not constrain.
	assert.False(t, f.ExcludedByConstraints("Sterling Silver Ring", map[string]any{"color": "not answered"}))
}

func TestExcludedByConstraints_ShortTermsWordBounded(t *testing.T) {
	f := NewResultFilter()

	// "red" must not match inside "hundred"
	assert.True(t, f.ExcludedByConstraints("One Hundred Piece Puzzle", map[string]any{"color": "red"}))
	assert.False(t, f.ExcludedByConstraints("Red Hundred Piece Puzzle", map[string]any{"color": "red"}))
}

func TestMaterialConstraints(t *testing.T) {
	f := NewResultFilter()

	synth, custom := f.MaterialConstraints(map[string]any{"plastic": "no plastic please"})
	assert.True(t, synth)
	assert.Empty(t, custom)

	synth, custom = f.MaterialConstraints(map[string]any{"no chrome": "yes"})
	assert.False(t, synth)
	assert.Equal(t, []string{"chrome"}, custom)

	synth, custom = f.MaterialConstraints(map[string]any{"material": "leather without suede"})
	assert.False(t, synth)
	assert.Equal(t, []string{"suede"}, custom)
}

func TestExcludedByMaterial(t *testing.T) {
	f := NewResultFilter()

	assert.True(t, f.ExcludedByMaterial("Faux Leather Jacket", true, nil))
	assert.True(t, f.ExcludedByMaterial("PU Leather Belt", true, nil))
	assert.False(t, f.ExcludedByMaterial("Push Button Kettle", true, nil))
	assert.False(t, f.ExcludedByMaterial("Full Grain Leather Jacket", true, nil))
	assert.True(t, f.ExcludedByMaterial("Chrome Plated Tray", false, []string{"chrome"}))
	assert.False(t, f.ExcludedByMaterial("Wooden Tray", false, []string{"chrome"}))
}

func TestContainsSyntheticMaterial(t *testing.T) {
	assert.True(t, ContainsSyntheticMaterial("100% Polyester Throw Blanket"))
	assert.True(t, ContainsSyntheticMaterial("Vegan Leather Tote"))
	assert.False(t, ContainsSyntheticMaterial("Organic Cotton Tote"))
	assert.False(t, ContainsSyntheticMaterial(""))
}

func TestApply_FilterChain(t *testing.T) {
	f := NewResultFilter()

	results := []*entities.NormalizedResult{
		{Title: "Product X", Source: "rainforest", Price: floatPtr(999)},
		{Title: "Notebook Y", Source: "ebay", Price: floatPtr(25)},
		{Title: "Notebook Pro", Source: "vendordir", Price: nil},
	}
	intent := &entities.SearchIntent{MinPrice: floatPtr(0), MaxPrice: floatPtr(50)}

	kept, stats := f.Apply(results, intent, nil)

	assert.Len(t, kept, 2)
	assert.Equal(t, "Notebook Y", kept[0].Title)
	assert.Equal(t, "Notebook Pro", kept[1].Title)
	assert.Equal(t, 3, stats.Input)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 1, stats.DroppedPrice)
	assert.True(t, stats.PriceFiltered())
	assert.Equal(t, 1, stats.Dropped())
}

func TestApply_PricedAlwaysLookup(t *testing.T) {
	f := NewResultFilter()

	results := []*entities.NormalizedResult{
		{Title: "Charter Quote", Source: "vendordir", Price: floatPtr(50000)},
		{Title: "Budget Flight", Source: "rainforest", Price: floatPtr(50000)},
	}
	intent := &entities.SearchIntent{MaxPrice: floatPtr(1000)}
	pricedAlways := func(source string) bool { return source != "vendordir" }

	kept, stats := f.Apply(results, intent, pricedAlways)

	assert.Len(t, kept, 1)
	assert.Equal(t, "Charter Quote", kept[0].Title)
	assert.Equal(t, 1, stats.DroppedPrice)
}

func TestApply_NilIntentPassesEverything(t *testing.T) {
	f := NewResultFilter()

	results := []*entities.NormalizedResult{
		{Title: "Anything", Source: "ebay", Price: floatPtr(10)},
		{Title: "Unpriced", Source: "vendordir"},
	}

	kept, stats := f.Apply(results, nil, nil)

	assert.Len(t, kept, 2)
	assert.Equal(t, 0, stats.Dropped())
}

func TestApply_MaterialAndExclusions(t *testing.T) {
	f := NewResultFilter()

	results := []*entities.NormalizedResult{
		{Title: "Vinyl Record Shelf", Source: "ebay", Price: floatPtr(40)},
		{Title: "Oak Record Shelf", Source: "ebay", Price: floatPtr(45)},
		{Title: "Oak Shelf Digital Plans", Source: "ebay", Price: floatPtr(5)},
	}
	intent := &entities.SearchIntent{
		ExcludeKeywords: []string{"digital"},
		Constraints:     map[string]any{"synthetic": "exclude synthetics"},
	}

	kept, stats := f.Apply(results, intent, nil)

	assert.Len(t, kept, 1)
	assert.Equal(t, "Oak Record Shelf", kept[0].Title)
	assert.Equal(t, 1, stats.DroppedExclusion)
	assert.Equal(t, 1, stats.DroppedMaterial)
}
