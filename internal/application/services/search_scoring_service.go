package services

import (
	"math"
	"sort"
	"strings"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

// affiliateBoosted sources carry a configured affiliate program; penalized
// sources have none yet. Everything else is neutral.
var (
	affiliateBoosted   = map[string]struct{}{"rainforest": {}, "amazon": {}}
	affiliatePenalized = map[string]struct{}{"serpapi": {}, "searchapi": {}, "google_cse": {}, "google_shopping": {}}
)

// ScoringWeights are the dimension weights of the combined score. They are
// tunable policy; the four base weights must sum to 1.0.
type ScoringWeights struct {
	Relevance float64
	Price     float64
	Quality   float64
	Diversity float64
}

// DefaultScoringWeights weight relevance highest: it decides whether a
// result matches what the user asked for at all.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Relevance: 0.50,
		Price:     0.20,
		Quality:   0.20,
		Diversity: 0.10,
	}
}

// SearchScoringService scores and orders normalized results. Rank never
// drops a result: it only reorders and annotates provenance. The service is
// stateless and safe for concurrent use across requests.
type SearchScoringService struct {
	weights ScoringWeights
}

func NewSearchScoringService() *SearchScoringService {
	return &SearchScoringService{weights: DefaultScoringWeights()}
}

func NewSearchScoringServiceWithWeights(weights ScoringWeights) *SearchScoringService {
	return &SearchScoringService{weights: weights}
}

// Rank returns the results sorted by descending combined score, each with a
// ScoreBreakdown written into its provenance. The sort is stable: ties keep
// their prior relative order.
func (s *SearchScoringService) Rank(results []*entities.NormalizedResult, intent *entities.SearchIntent) []*entities.NormalizedResult {
	if len(results) == 0 {
		return results
	}

	var minPrice, maxPrice *float64
	if intent != nil {
		minPrice, maxPrice = intent.MinPrice, intent.MaxPrice
	}

	sourceCounts := make(map[string]int, 4)
	for _, r := range results {
		sourceCounts[r.Source]++
	}
	total := len(results)

	ranked := make([]*entities.NormalizedResult, len(results))
	copy(ranked, results)

	for _, r := range ranked {
		relevance := s.relevanceScore(r, intent)
		price := s.priceScore(r.Price, minPrice, maxPrice)
		quality := s.qualityScore(r)
		diversity := s.diversityBonus(r.Source, sourceCounts, total)
		sourceFit := s.sourceFitScore(r)
		affiliate := affiliateMultiplier(r.Source)

		// Source fit is a soft multiplier so vendor vector similarity can
		// reorder without zeroing marketplace results.
		base := relevance*s.weights.Relevance + price*s.weights.Price + quality*s.weights.Quality + diversity*s.weights.Diversity
		combined := base * (0.3 + 0.7*sourceFit) * affiliate

		r.SetScore(&entities.ScoreBreakdown{
			Relevance:           round4(relevance),
			Price:               round4(price),
			Quality:             round4(quality),
			Diversity:           round4(diversity),
			SourceFit:           round4(sourceFit),
			AffiliateMultiplier: round4(affiliate),
			Combined:            round4(combined),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CombinedScore() > ranked[j].CombinedScore()
	})
	return ranked
}

// priceScore rates how well a concrete price fits the requested bounds.
// A missing or non-positive price scores a flat 0.3: unlike the hard filter's
// nil exemption, scoring gives unpriced results partial credit rather than a
// pass, so priced in-range results still outrank them.
func (s *SearchScoringService) priceScore(price, minPrice, maxPrice *float64) float64 {
	if price == nil || *price <= 0 {
		return 0.3
	}
	p := *price

	if minPrice == nil && maxPrice == nil {
		return 0.5
	}

	if minPrice != nil && maxPrice != nil {
		lo, hi := *minPrice, *maxPrice
		mid := (lo + hi) / 2
		span := hi - lo
		if span <= 0 {
			if math.Abs(p-mid) < 1 {
				return 1.0
			}
			return 0.2
		}
		// Distance from the midpoint as a fraction of the half-span:
		// 0.7-1.0 inside the range, linear decay beyond it.
		distance := math.Abs(p-mid) / (span / 2)
		if distance <= 1.0 {
			return 1.0 - distance*0.3
		}
		return math.Max(0.0, 0.7-(distance-1.0)*0.5)
	}

	if maxPrice != nil {
		hi := *maxPrice
		if p <= hi {
			return 0.8 + 0.2*(1-p/hi)
		}
		return math.Max(0.0, 0.5-(p-hi)/hi)
	}

	lo := *minPrice
	if p >= lo {
		return 0.8
	}
	return math.Max(0.0, 0.5-(lo-p)/lo)
}

// relevanceScore rates how well a result matches the intent. For vendor
// directory results the vector similarity is the relevance signal: the
// embedding already encodes what keyword overlap would approximate.
func (s *SearchScoringService) relevanceScore(r *entities.NormalizedResult, intent *entities.SearchIntent) float64 {
	if r.Source == entities.SourceVendorDirectory {
		if sim, ok := provenanceFloat(r, "vector_similarity"); ok {
			// Raw similarity clusters between ~0.45 and ~0.62; rescale so
			// tighter matches separate sharply.
			return clamp01((sim - 0.40) / 0.25)
		}
	}

	if intent == nil {
		return 0.5
	}

	score := 0.0
	titleLower := strings.ToLower(r.Title)
	searchable := r.SearchableText()

	if intent.Brand != "" {
		brandLower := strings.ToLower(intent.Brand)
		switch {
		case strings.Contains(titleLower, brandLower):
			score += 0.25
		case strings.Contains(searchable, brandLower):
			score += 0.15
		default:
			for _, word := range strings.Fields(brandLower) {
				if strings.Contains(searchable, word) {
					score += 0.08
					break
				}
			}
		}
	}

	if len(intent.Keywords) > 0 {
		titleMatched, fullMatched := 0, 0
		for _, kw := range intent.Keywords {
			kwLower := strings.ToLower(kw)
			if strings.Contains(titleLower, kwLower) {
				titleMatched++
			}
			if strings.Contains(searchable, kwLower) {
				fullMatched++
			}
		}
		count := float64(len(intent.Keywords))
		titleRatio := float64(titleMatched) / count
		fullRatio := float64(fullMatched) / count
		score += titleRatio*0.35 + (fullRatio-titleRatio)*0.10
	}

	if intent.ProductName != "" {
		var nameWords []string
		for _, w := range strings.Fields(strings.ToLower(intent.ProductName)) {
			if len(w) > 2 {
				nameWords = append(nameWords, w)
			}
		}
		if len(nameWords) > 0 {
			matched := 0
			for _, w := range nameWords {
				if strings.Contains(titleLower, w) {
					matched++
				}
			}
			score += float64(matched) / float64(len(nameWords)) * 0.15
		}
	}

	if intent.ProductCategory != "" {
		catWords := strings.Fields(strings.ReplaceAll(strings.ToLower(intent.ProductCategory), "_", " "))
		if len(catWords) > 0 {
			matched := 0
			for _, w := range catWords {
				if strings.Contains(searchable, w) {
					matched++
				}
			}
			score += float64(matched) / float64(len(catWords)) * 0.10
		}
	}

	score += 0.05

	return math.Min(score, 1.0)
}

// qualityScore rates trust signals: rating, review volume, image, shipping
func (s *SearchScoringService) qualityScore(r *entities.NormalizedResult) float64 {
	score := 0.3

	if r.Rating != nil && *r.Rating > 0 {
		score += (*r.Rating / 5.0) * 0.35
	}
	if r.ReviewsCount != nil && *r.ReviewsCount > 0 {
		// Log scale saturating near 1000 reviews.
		signal := math.Min(math.Log10(float64(*r.ReviewsCount)+1)/3.0, 1.0)
		score += signal * 0.2
	}
	if r.ImageURL != "" {
		score += 0.05
	}
	if r.ShippingInfo != "" {
		score += 0.1
	}

	return math.Min(score, 1.0)
}

// diversityBonus rewards results from underrepresented sources so one
// provider cannot monopolize the page.
func (s *SearchScoringService) diversityBonus(source string, sourceCounts map[string]int, total int) float64 {
	if total <= 1 {
		return 0.5
	}
	share := float64(sourceCounts[source]) / float64(total)
	switch {
	case share < 0.2:
		return 1.0
	case share < 0.4:
		return 0.7
	case share < 0.6:
		return 0.4
	default:
		return 0.2
	}
}

// sourceFitScore passes vendor vector similarity through as the source-fit
// signal; marketplace sources stay neutral and let relevance do the work.
func (s *SearchScoringService) sourceFitScore(r *entities.NormalizedResult) float64 {
	if r.Source != entities.SourceVendorDirectory {
		return 0.5
	}
	sim, ok := provenanceFloat(r, "vector_similarity")
	if !ok {
		return 0.5
	}
	return math.Max(0.3, math.Min(1.0, sim*1.5))
}

func affiliateMultiplier(source string) float64 {
	if _, ok := affiliateBoosted[source]; ok {
		return 1.25
	}
	if _, ok := affiliatePenalized[source]; ok {
		return 0.60
	}
	return 1.0
}

func provenanceFloat(r *entities.NormalizedResult, key string) (float64, bool) {
	if r.Provenance == nil {
		return 0, false
	}
	switch v := r.Provenance[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
