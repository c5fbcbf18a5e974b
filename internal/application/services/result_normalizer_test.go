package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
)

func TestResultNormalizerGeneric(t *testing.T) {
	normalizer := NewResultNormalizer()

	raw := providers.RawResult{
		Title:    "  Leather Notebook Cover  ",
		Price:    floatPtr(25.99),
		Currency: "usd",
		Merchant: "Paper Goods Co",
		URL:      "https://www.Example.com/Deals/item/42?utm_campaign=feed&ref=aff&id=9",
		Source:   "mockshop",
	}

	results := normalizer.Normalize(entities.SourceMockShop, []providers.RawResult{raw})
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, "Leather Notebook Cover", result.Title)
	assert.Equal(t, "https://example.com/Deals/item/42?id=9", result.CanonicalURL)
	assert.Equal(t, "example.com", result.MerchantDomain)
	assert.Equal(t, "Paper Goods Co", result.MerchantName)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 25.99, *result.Price, 0.001)
	assert.Equal(t, "USD", result.Currency)
	assert.Nil(t, result.PriceOriginal)
	assert.Empty(t, result.CurrencyOriginal)

	assert.Equal(t, entities.SourceMockShop, result.RawData["provider_id"])
	assert.Equal(t, entities.SourceMockShop, result.Provenance["source_provider"])
	info, ok := result.Provenance["product_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Leather Notebook Cover", info["title"])
}

func TestResultNormalizerCurrencyConversion(t *testing.T) {
	normalizer := NewResultNormalizer()

	raw := providers.RawResult{
		Title:    "Imported Fountain Pen",
		Price:    floatPtr(100.0),
		Currency: "EUR",
		URL:      "https://shop.example.de/pen",
	}

	results := normalizer.Normalize(entities.SourceMockShop, []providers.RawResult{raw})
	require.Len(t, results, 1)

	result := results[0]
	require.NotNil(t, result.Price)
	assert.InDelta(t, 108.0, *result.Price, 0.001)
	assert.Equal(t, "USD", result.Currency)
	require.NotNil(t, result.PriceOriginal)
	assert.InDelta(t, 100.0, *result.PriceOriginal, 0.001)
	assert.Equal(t, "EUR", result.CurrencyOriginal)
}

func TestResultNormalizerUnpricedStaysUnpriced(t *testing.T) {
	normalizer := NewResultNormalizer()

	results := normalizer.Normalize(entities.SourceVendorDirectory, []providers.RawResult{{
		Title: "Charter Operator",
		URL:   "https://flyregional.example",
	}})
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Price)
}

func TestResultNormalizerSkipsMalformed(t *testing.T) {
	normalizer := NewResultNormalizer()

	batch := []providers.RawResult{
		{Title: "Good Item", URL: "https://example.com/a", Price: floatPtr(10)},
		{Title: "", URL: "https://example.com/untitled"},
		{Title: "No Link Item", URL: "   "},
		{Title: "Another Good Item", URL: "https://example.com/b"},
	}

	results := normalizer.Normalize(entities.SourceMockShop, batch)
	require.Len(t, results, 2)
	assert.Equal(t, "Good Item", results[0].Title)
	assert.Equal(t, "Another Good Item", results[1].Title)
}

func TestResultNormalizerMatchedFeatures(t *testing.T) {
	normalizer := NewResultNormalizer()

	raw := providers.RawResult{
		Title:            "Espresso Machine",
		URL:              "https://example.com/espresso",
		Rating:           floatPtr(4.6),
		ReviewsCount:     intPtr(1234),
		ShippingInfo:     "Free shipping",
		VectorSimilarity: floatPtr(0.82),
	}

	results := normalizer.Normalize(entities.SourceMockShop, []providers.RawResult{raw})
	require.Len(t, results, 1)

	features, ok := results[0].Provenance["matched_features"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{
		"Highly rated (4.6★)",
		"Free shipping",
		"Popular (1,234 reviews)",
		"Strong match for your search",
	}, features)

	similarity, ok := results[0].Provenance["vector_similarity"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 0.82, similarity, 0.001)
}

func TestResultNormalizerNoFeaturesForBareResult(t *testing.T) {
	normalizer := NewResultNormalizer()

	results := normalizer.Normalize(entities.SourceMockShop, []providers.RawResult{{
		Title: "Plain Widget",
		URL:   "https://example.com/widget",
	}})
	require.Len(t, results, 1)
	_, present := results[0].Provenance["matched_features"]
	assert.False(t, present)
	_, present = results[0].Provenance["vector_similarity"]
	assert.False(t, present)
}

func TestResultNormalizerTrackingVariantsCollapse(t *testing.T) {
	normalizer := NewResultNormalizer()

	batch := []providers.RawResult{
		{Title: "Desk Lamp", URL: "https://www.example.com/lamp?id=7&utm_source=newsletter"},
		{Title: "Desk Lamp", URL: "https://example.com/lamp/?utm_medium=cpc&id=7"},
	}

	results := normalizer.Normalize(entities.SourceMockShop, batch)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].DedupKey(), results[1].DedupKey())
}

func TestResultNormalizerEbayItemIdentity(t *testing.T) {
	normalizer := NewResultNormalizer()

	batch := []providers.RawResult{
		{
			Title: "Vintage Camera",
			URL:   "https://www.ebay.com/itm/334455?mkcid=1&campid=99",
			Raw:   map[string]any{"item_id": "334455", "condition": "Used"},
		},
		{
			Title: "Vintage Camera",
			URL:   "https://ebay.com/itm/334455?hash=abc123",
			Raw:   map[string]any{"item_id": "334455"},
		},
	}

	results := normalizer.Normalize(entities.SourceEbay, batch)
	require.Len(t, results, 2)

	assert.Equal(t, "https://www.ebay.com/itm/334455", results[0].CanonicalURL)
	assert.Equal(t, results[0].DedupKey(), results[1].DedupKey())

	info, ok := results[0].Provenance["product_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Used", info["condition"])
}

func TestResultNormalizerRainforestASIN(t *testing.T) {
	normalizer := NewResultNormalizer()

	results := normalizer.Normalize(entities.SourceRainforest, []providers.RawResult{{
		Title: "Mechanical Keyboard",
		URL:   "https://www.amazon.com/Some-Long-Product-Slug/dp/B0ABC123?tag=aff-20",
		Raw:   map[string]any{"asin": "B0ABC123"},
	}})
	require.Len(t, results, 1)
	assert.Equal(t, "https://www.amazon.com/dp/B0ABC123", results[0].CanonicalURL)
	assert.Equal(t, "amazon.com", results[0].MerchantDomain)
}

func TestResultNormalizerMailtoPreserved(t *testing.T) {
	normalizer := NewResultNormalizer()

	results := normalizer.Normalize(entities.SourceVendorDirectory, []providers.RawResult{{
		Title: "Bespoke Catering",
		URL:   "mailto:Orders@Catering.example",
	}})
	require.Len(t, results, 1)

	result := results[0]
	assert.Empty(t, result.CanonicalURL)
	assert.Equal(t, "mailto:orders@catering.example", result.DedupKey())
}

func TestResultNormalizerKeepsAdapterRawData(t *testing.T) {
	normalizer := NewResultNormalizer()

	results := normalizer.Normalize(entities.SourceVendorDirectory, []providers.RawResult{{
		Title: "Mountain Shuttle",
		URL:   "https://shuttle.example",
		Raw: map[string]any{
			"routes":   []string{"denver-aspen"},
			"capacity": 8,
		},
	}})
	require.Len(t, results, 1)

	assert.Equal(t, []string{"denver-aspen"}, results[0].RawData["routes"])
	assert.Equal(t, 8, results[0].RawData["capacity"])
	assert.Equal(t, entities.SourceVendorDirectory, results[0].RawData["provider_id"])
}

func TestGroupThousands(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{5, "5"},
		{999, "999"},
		{1000, "1,000"},
		{43210, "43,210"},
		{1234567, "1,234,567"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, groupThousands(tc.in))
	}
}
