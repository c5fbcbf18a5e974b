package entities

import (
	"sort"
	"strings"

	"github.com/dealscout/sourcing/pkg/utils"
)

// Condition classifies the acceptable state of a product
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionUsed        Condition = "used"
	ConditionRefurbished Condition = "refurbished"
	ConditionAny         Condition = "any"
)

// PriceFlexibility indicates how hard the intent's price bounds are
type PriceFlexibility string

const (
	PriceFlexibilityStrict   PriceFlexibility = "strict"
	PriceFlexibilityFlexible PriceFlexibility = "flexible"
)

// SearchIntent is the structured representation of an end-user purchasing
// request. It is built once by the upstream intent extractor and consumed
// read-only by the filter, scoring, and constraint stages.
type SearchIntent struct {
	ProductCategory  string           `json:"product_category"`
	TaxonomyVersion  string           `json:"taxonomy_version,omitempty"`
	CategoryPath     []string         `json:"category_path,omitempty"`
	ProductName      string           `json:"product_name,omitempty"`
	Brand            string           `json:"brand,omitempty"`
	Model            string           `json:"model,omitempty"`
	MinPrice         *float64         `json:"min_price,omitempty"`
	MaxPrice         *float64         `json:"max_price,omitempty"`
	PriceFlexibility PriceFlexibility `json:"price_flexibility,omitempty"`
	Condition        Condition        `json:"condition,omitempty"`
	Features         map[string]any   `json:"features,omitempty"`
	Keywords         []string         `json:"keywords,omitempty"`
	ExcludeKeywords  []string         `json:"exclude_keywords,omitempty"`
	ExcludeMerchants []string         `json:"exclude_merchants,omitempty"`
	Constraints      map[string]any   `json:"constraints,omitempty"`
	Confidence       float64          `json:"confidence"`
	RawInput         string           `json:"raw_input,omitempty"`
}

// NewSearchIntent creates an intent for a category with normalized keywords
func NewSearchIntent(productCategory string, keywords ...string) *SearchIntent {
	intent := &SearchIntent{
		ProductCategory: productCategory,
		Keywords:        keywords,
	}
	intent.Normalize()
	return intent
}

// Normalize cleans the mutable slices in place: keywords are deduplicated
// case-insensitively and sorted, empty category path segments dropped.
// Call once at construction; the intent is immutable afterwards.
func (si *SearchIntent) Normalize() {
	si.Keywords = NormalizeKeywords(si.Keywords)
	si.ExcludeKeywords = NormalizeKeywords(si.ExcludeKeywords)
	si.ExcludeMerchants = NormalizeKeywords(si.ExcludeMerchants)

	if len(si.CategoryPath) > 0 {
		path := make([]string, 0, len(si.CategoryPath))
		for _, segment := range si.CategoryPath {
			if segment != "" {
				path = append(path, segment)
			}
		}
		si.CategoryPath = path
	}
}

// NormalizeKeywords deduplicates keywords case-insensitively (first casing
// wins) and returns them sorted by their folded form.
func NormalizeKeywords(values []string) []string {
	dedup := make(map[string]string, len(values))
	for _, item := range values {
		cleaned := strings.TrimSpace(item)
		if cleaned == "" {
			continue
		}
		key := strings.ToLower(cleaned)
		if _, exists := dedup[key]; !exists {
			dedup[key] = cleaned
		}
	}

	keys := make([]string, 0, len(dedup))
	for key := range dedup {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	normalized := make([]string, 0, len(keys))
	for _, key := range keys {
		normalized = append(normalized, dedup[key])
	}
	return normalized
}

// QueryTerms builds the ordered provider query term list: brand, model,
// product name, category label, keywords, feature values, then the raw input,
// deduplicated case-insensitively with first occurrence winning.
func (si *SearchIntent) QueryTerms() []string {
	var terms []string
	if si.Brand != "" {
		terms = append(terms, si.Brand)
	}
	if si.Model != "" {
		terms = append(terms, si.Model)
	}
	if si.ProductName != "" {
		terms = append(terms, si.ProductName)
	}
	if si.ProductCategory != "" {
		terms = append(terms, utils.CategoryLabel(si.ProductCategory))
	}
	terms = append(terms, si.Keywords...)
	terms = append(terms, si.featureValues()...)
	if si.RawInput != "" {
		terms = append(terms, si.RawInput)
	}
	return dedupeTerms(terms)
}

// QueryString joins the query terms for providers that take one free-text query
func (si *SearchIntent) QueryString() string {
	terms := si.QueryTerms()
	if len(terms) == 0 {
		if si.RawInput != "" {
			return si.RawInput
		}
		return utils.CategoryLabel(si.ProductCategory)
	}
	return strings.Join(terms, " ")
}

// VendorQuery returns the short phrase used for vendor directory matching:
// the extracted product name when present, otherwise the raw user input.
// The full query string is too diluted for embedding similarity.
func (si *SearchIntent) VendorQuery() string {
	if si.ProductName != "" {
		return si.ProductName
	}
	return si.RawInput
}

// CategoryPathString renders the taxonomy path for provenance display
func (si *SearchIntent) CategoryPathString() string {
	if len(si.CategoryPath) > 0 {
		return strings.Join(si.CategoryPath, " > ")
	}
	return strings.Join(utils.CategoryPath(si.ProductCategory), " > ")
}

// featureValues flattens feature values in sorted key order so that query
// building stays deterministic across runs.
func (si *SearchIntent) featureValues() []string {
	if len(si.Features) == 0 {
		return nil
	}
	keys := make([]string, 0, len(si.Features))
	for key := range si.Features {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var values []string
	for _, key := range keys {
		switch v := si.Features[key].(type) {
		case string:
			if v != "" {
				values = append(values, v)
			}
		case []string:
			values = append(values, v...)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					values = append(values, s)
				}
			}
		}
	}
	return values
}

// FeatureTerms returns every feature value as a flat list, used for
// matched-feature provenance annotations.
func (si *SearchIntent) FeatureTerms() []string {
	return si.featureValues()
}

func dedupeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	deduped := make([]string, 0, len(terms))
	for _, term := range terms {
		cleaned := strings.TrimSpace(term)
		if cleaned == "" {
			continue
		}
		key := strings.ToLower(cleaned)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, cleaned)
	}
	return deduped
}
