package services

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/pkg/utils"
)

// normalizeOverride refines a generically normalized result with
// source-specific knowledge, typically a stable item identity.
type normalizeOverride func(item providers.RawResult, result *entities.NormalizedResult)

// ResultNormalizer converts raw provider output into the canonical listing
// representation: canonical URL, USD price with the original preserved,
// merchant domain, and display provenance. Marketplaces with stable item IDs
// get a per-source override so the same listing reached through different
// tracking links still collapses to one identity.
type ResultNormalizer struct {
	overrides map[string]normalizeOverride
}

// NewResultNormalizer creates a normalizer with the built-in source overrides.
func NewResultNormalizer() *ResultNormalizer {
	return &ResultNormalizer{
		overrides: map[string]normalizeOverride{
			entities.SourceEbay:       normalizeEbayResult,
			entities.SourceRainforest: normalizeRainforestResult,
		},
	}
}

// Normalize converts one provider batch. Malformed items (missing title or
// URL) are skipped individually with a warning; one bad item never drops the
// rest of the batch.
func (n *ResultNormalizer) Normalize(providerID string, items []providers.RawResult) []*entities.NormalizedResult {
	results := make([]*entities.NormalizedResult, 0, len(items))
	for _, item := range items {
		result := n.normalizeOne(providerID, item)
		if result == nil {
			continue
		}
		results = append(results, result)
	}
	return results
}

func (n *ResultNormalizer) normalizeOne(providerID string, item providers.RawResult) *entities.NormalizedResult {
	title := strings.TrimSpace(item.Title)
	url := strings.TrimSpace(item.URL)
	if title == "" || url == "" {
		log.Printf("Warning: skipping malformed %s result (missing title or url)", providerID)
		return nil
	}

	source := item.Source
	if source == "" {
		source = providerID
	}

	result := &entities.NormalizedResult{
		Title:          title,
		URL:            url,
		Source:         source,
		Currency:       "USD",
		MerchantName:   item.Merchant,
		MerchantDomain: item.MerchantDomain,
		ImageURL:       item.ImageURL,
		Rating:         item.Rating,
		ReviewsCount:   item.ReviewsCount,
		ShippingInfo:   item.ShippingInfo,
		Embedding:      item.Embedding,
	}

	// mailto contact links (vendors without a storefront) are their own
	// identity; running them through the URL canonicalizer would invent a
	// bogus https host.
	if !strings.HasPrefix(strings.ToLower(url), "mailto:") {
		result.CanonicalURL = utils.CanonicalizeURL(url)
		if result.MerchantDomain == "" {
			result.MerchantDomain = utils.MerchantDomain(url)
		}
	}

	if item.Price != nil {
		price := *item.Price
		currency := utils.NormalizeCurrencyCode(item.Currency)
		if currency == "" {
			currency = "USD"
		}
		if converted, ok := utils.ConvertToUSD(price, currency); ok {
			result.Price = &converted
			if currency != "USD" {
				result.PriceOriginal = &price
				result.CurrencyOriginal = currency
			}
		} else {
			result.Price = &price
			result.Currency = currency
		}
	}

	rawData := make(map[string]any, len(item.Raw)+1)
	for key, value := range item.Raw {
		rawData[key] = value
	}
	rawData["provider_id"] = providerID
	result.RawData = rawData

	provenance := result.EnsureProvenance()
	provenance["source_provider"] = providerID
	provenance["product_info"] = map[string]any{"title": title}
	if features := rawMatchedFeatures(item); len(features) > 0 {
		provenance["matched_features"] = features
	}
	if item.VectorSimilarity != nil && *item.VectorSimilarity > 0 {
		provenance["vector_similarity"] = *item.VectorSimilarity
	}

	if override, ok := n.overrides[providerID]; ok {
		override(item, result)
	}

	return result
}

// rawMatchedFeatures derives the short display annotations shown alongside a
// result: high ratings, shipping perks, review volume, and strong vector
// matches.
func rawMatchedFeatures(item providers.RawResult) []string {
	var features []string
	if item.Rating != nil && *item.Rating > 4.0 {
		features = append(features, fmt.Sprintf("Highly rated (%.1f★)", *item.Rating))
	}
	if shipping := strings.TrimSpace(item.ShippingInfo); shipping != "" {
		features = append(features, shipping)
	}
	if item.ReviewsCount != nil && *item.ReviewsCount > 100 {
		features = append(features, fmt.Sprintf("Popular (%s reviews)", groupThousands(*item.ReviewsCount)))
	}
	if item.VectorSimilarity != nil && *item.VectorSimilarity > 0.7 {
		features = append(features, "Strong match for your search")
	}
	return features
}

// normalizeEbayResult pins the canonical URL to the stable eBay item form so
// affiliate and tracking variants of the same listing share one identity.
func normalizeEbayResult(item providers.RawResult, result *entities.NormalizedResult) {
	if itemID := rawStringValue(item, "item_id"); itemID != "" {
		result.CanonicalURL = "https://www.ebay.com/itm/" + itemID
	}
	if result.MerchantDomain == "" {
		result.MerchantDomain = "ebay.com"
	}
	if condition := rawStringValue(item, "condition"); condition != "" {
		if info, ok := result.Provenance["product_info"].(map[string]any); ok {
			info["condition"] = condition
		}
	}
}

// normalizeRainforestResult pins the canonical URL to the Amazon ASIN form.
func normalizeRainforestResult(item providers.RawResult, result *entities.NormalizedResult) {
	if asin := rawStringValue(item, "asin"); asin != "" {
		result.CanonicalURL = "https://www.amazon.com/dp/" + asin
	}
	if result.MerchantDomain == "" {
		result.MerchantDomain = "amazon.com"
	}
}

func rawStringValue(item providers.RawResult, key string) string {
	if item.Raw == nil {
		return ""
	}
	value, _ := item.Raw[key].(string)
	return value
}

// groupThousands formats a count with comma separators for display
func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
