package vendordir

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
)

const (
	// defaultDistanceThreshold is the cosine distance ceiling for a vendor
	// to count as a match: 0 = identical, 2 = opposite.
	defaultDistanceThreshold = 0.45

	defaultLimit = 15
)

// aggregatorDomains are platform hosts that never identify the vendor
// itself. A vendor whose website points at one of these gets no merchant
// domain rather than a misleading one.
var aggregatorDomains = map[string]bool{
	"google.com":      true,
	"maps.google.com": true,
	"yelp.com":        true,
	"facebook.com":    true,
	"linkedin.com":    true,
	"instagram.com":   true,
	"twitter.com":     true,
	"x.com":           true,
	"youtube.com":     true,
}

// Adapter is the vendor-directory sourcing provider: it embeds the query
// and runs nearest-neighbor search over indexed vendor descriptions.
// Directory vendors quote on request, so every result is unpriced.
type Adapter struct {
	embedder  providers.EmbeddingProvider
	index     repositories.VendorSearchIndex
	threshold float64
	limit     int
}

// NewAdapter creates a vendor directory provider
func NewAdapter(embedder providers.EmbeddingProvider, index repositories.VendorSearchIndex) *Adapter {
	return &Adapter{
		embedder:  embedder,
		index:     index,
		threshold: defaultDistanceThreshold,
		limit:     defaultLimit,
	}
}

// Name returns the source identifier
func (a *Adapter) Name() string {
	return "vendordir"
}

// PricedAlways reports that directory results are quote-style, never priced
func (a *Adapter) PricedAlways() bool {
	return false
}

// Search embeds the query and returns vendors within the distance threshold.
// When a context query is present the intent embedding is blended with the
// context embedding 70/30, keeping intent dominant while still boosting
// vendors that match route or location context.
func (a *Adapter) Search(ctx context.Context, query string, opts providers.SearchOptions) ([]providers.RawResult, error) {
	embedding, err := a.queryEmbedding(ctx, query, opts.ContextQuery)
	if err != nil {
		return nil, err
	}
	if embedding == nil {
		// No embedding capability configured; directory search is optional
		log.Printf("[vendordir] no embedding available, skipping vector search")
		return nil, nil
	}

	limit := a.limit
	if opts.MaxResults > 0 && opts.MaxResults < limit {
		limit = opts.MaxResults
	}

	matches, err := a.index.SearchSimilar(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}

	results := make([]providers.RawResult, 0, len(matches))
	for _, match := range matches {
		if match.Distance > a.threshold {
			continue
		}
		results = append(results, a.toRawResult(match))
	}

	return results, nil
}

func (a *Adapter) queryEmbedding(ctx context.Context, query, contextQuery string) ([]float32, error) {
	hasContext := contextQuery != "" &&
		!strings.EqualFold(strings.TrimSpace(contextQuery), strings.TrimSpace(query))

	if !hasContext {
		return a.embedder.EmbedText(ctx, query)
	}

	vecs, err := a.embedder.EmbedBatch(ctx, []string{query, contextQuery})
	if err != nil {
		return nil, err
	}
	if len(vecs) < 2 || vecs[0] == nil || vecs[1] == nil {
		return nil, nil
	}
	return blendEmbeddings(vecs, []float32{0.7, 0.3}), nil
}

// blendEmbeddings combines vectors with weights and L2-normalizes the blend
// so cosine distance stays meaningful.
func blendEmbeddings(vecs [][]float32, weights []float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	blended := make([]float32, dim)
	for v, vec := range vecs {
		if len(vec) != dim {
			continue
		}
		for i := range vec {
			blended[i] += vec[i] * weights[v]
		}
	}

	var norm float64
	for _, x := range blended {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range blended {
			blended[i] = float32(float64(blended[i]) / norm)
		}
	}
	return blended
}

func (a *Adapter) toRawResult(match *repositories.VendorMatch) providers.RawResult {
	vendor := match.Vendor
	similarity := 1.0 - match.Distance

	url := vendor.Website
	if url == "" {
		if email := metadataString(vendor, "email"); email != "" {
			url = "mailto:" + email
		}
	}

	merchantDomain := vendorMerchantDomain(vendor.Website)

	image := metadataString(vendor, "image_url")
	if image == "" && merchantDomain != "" {
		image = fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=128", merchantDomain)
	}

	shippingInfo := ""
	if category := metadataString(vendor, "category"); category != "" {
		shippingInfo = "Category: " + category
	}

	// Vendor attributes ride along in the raw bag so the constraint scorer
	// can match routes, service areas, and capacity downstream.
	raw := make(map[string]any, len(vendor.Metadata)+4)
	for k, v := range vendor.Metadata {
		raw[k] = v
	}
	if vendor.Description != "" {
		raw["description"] = vendor.Description
	}
	if len(vendor.Routes) > 0 {
		raw["routes"] = vendor.Routes
	}
	if len(vendor.ServiceAreas) > 0 {
		raw["service_area"] = vendor.ServiceAreas
	}
	if vendor.Capacity != nil {
		raw["capacity"] = *vendor.Capacity
	}

	return providers.RawResult{
		Title:            vendor.Name,
		Price:            nil,
		Currency:         "USD",
		Merchant:         vendor.Name,
		URL:              url,
		MerchantDomain:   merchantDomain,
		ImageURL:         image,
		ShippingInfo:     shippingInfo,
		Source:           a.Name(),
		VectorSimilarity: &similarity,
		Embedding:        vendor.Embedding,
		Raw:              raw,
	}
}

// metadataString reads an optional string field from the vendor metadata bag
func metadataString(vendor *entities.Vendor, key string) string {
	if vendor == nil || vendor.Metadata == nil {
		return ""
	}
	value, _ := vendor.Metadata[key].(string)
	return value
}

// vendorMerchantDomain extracts the host from the vendor website, dropping
// aggregator hosts that say nothing about the vendor.
func vendorMerchantDomain(website string) string {
	if website == "" {
		return ""
	}
	host := website
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if idx := strings.Index(host, "/"); idx >= 0 {
		host = host[:idx]
	}
	host = strings.ToLower(host)
	if aggregatorDomains[strings.TrimPrefix(host, "www.")] {
		return ""
	}
	return host
}

var _ providers.SourcingProvider = (*Adapter)(nil)
