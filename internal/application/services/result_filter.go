package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

// syntheticMaterialKeywords lists petroleum-based and man-made materials
// excluded when the intent carries a no-plastic / no-synthetic constraint.
// Short abbreviations (pu, pet, pp, pe) are matched on word boundaries so
// that "PU leather" hits but "push" does not.
var syntheticMaterialKeywords = []string{
	"plastic", "polymer", "polyester", "polyurethane", "polypropylene",
	"polyethylene", "polycarbonate", "pvc", "vinyl", "nylon", "acrylic",
	"spandex", "lycra", "elastane",
	"faux leather", "faux-leather", "fake leather", "synthetic leather",
	"vegan leather", "pleather", "leatherette", "pu leather", "pu-leather",
	"polyurethane leather",
	"pu", "pet", "pp", "pe",
	"rayon", "microfiber", "fiberboard", "particle board", "particleboard",
	"melamine", "laminate", "laminated", "bonded leather",
	"synthetic fiber", "synthetic fabric", "man-made", "manmade",
}

// productAttributeKeys are constraint keys that describe the product itself
// and may be matched against listing titles.
var productAttributeKeys = map[string]struct{}{
	"material": {}, "color": {}, "colour": {}, "size": {}, "style": {},
	"brand": {}, "type": {}, "finish": {}, "pattern": {}, "shape": {},
	"flavor": {}, "weight": {}, "length": {}, "width": {}, "height": {},
}

// constraintSkipKeys describe buyer context, not the product; matching them
// against titles would wrongly drop results.
var constraintSkipKeys = map[string]struct{}{
	"min_price": {}, "max_price": {}, "price": {}, "budget": {},
	"recipient": {}, "occasion": {}, "purpose": {}, "use_case": {}, "reason": {},
	"timeline": {}, "urgency": {}, "delivery": {}, "shipping": {},
	"format": {},
	"notes":  {}, "comments": {}, "description": {}, "safety_status": {}, "safety_reason": {},
	"quantity": {}, "count": {},
}

var compoundValuePattern = regexp.MustCompile(`\s+or\s+|\s+and\s+|,\s*|/\s*`)

// FilterStats counts what the filter chain dropped in one pass
type FilterStats struct {
	Input             int
	Kept              int
	DroppedPrice      int
	DroppedExclusion  int
	DroppedConstraint int
	DroppedMaterial   int
}

// PriceFiltered reports whether price bounds removed anything
func (s FilterStats) PriceFiltered() bool {
	return s.DroppedPrice > 0
}

// Dropped returns the total number of removed results
func (s FilterStats) Dropped() int {
	return s.Input - s.Kept
}

// ResultFilter is the single inclusion rule applied to every result before
// scoring: price bounds, exclusion lists, attribute constraints, material
// constraints. Every source passes through the same chain; the only price
// exemptions are a nil price and an adapter that declares pricedAlways=false.
type ResultFilter struct{}

func NewResultFilter() *ResultFilter {
	return &ResultFilter{}
}

// ShouldInclude is the uniform price predicate.
//
// A nil price always passes: the result is quote-based and not yet priced.
// An adapter with pricedAlways=false always passes: its results never carry
// comparable prices. With no bounds set everything passes. Otherwise a
// concrete price must fall inside [min, max], either bound optional.
func (f *ResultFilter) ShouldInclude(price *float64, pricedAlways bool, minPrice, maxPrice *float64) bool {
	if price == nil {
		return true
	}
	if !pricedAlways {
		return true
	}
	if minPrice == nil && maxPrice == nil {
		return true
	}
	if minPrice != nil && *price < *minPrice {
		return false
	}
	if maxPrice != nil && *price > *maxPrice {
		return false
	}
	return true
}

// ExcludedByLists checks the intent's exclusion lists. Merchant exclusions
// match merchant name or domain; keyword exclusions match the title.
func (f *ResultFilter) ExcludedByLists(title, merchant, merchantDomain string, excludeKeywords, excludeMerchants []string) bool {
	if len(excludeKeywords) == 0 && len(excludeMerchants) == 0 {
		return false
	}

	titleLower := strings.ToLower(title)
	merchantLower := strings.ToLower(merchant)
	domainLower := strings.ToLower(merchantDomain)

	for _, excluded := range excludeMerchants {
		ex := strings.ToLower(excluded)
		if ex == "" {
			continue
		}
		if strings.Contains(merchantLower, ex) || strings.Contains(domainLower, ex) {
			return true
		}
	}
	for _, excluded := range excludeKeywords {
		ex := strings.ToLower(excluded)
		if ex == "" {
			continue
		}
		if strings.Contains(titleLower, ex) {
			return true
		}
	}
	return false
}

// ExcludedByConstraints drops a result whose title fails a product-attribute
// constraint. Buyer-context keys (recipient, occasion, budget, ...) never
// exclude by title.
func (f *ResultFilter) ExcludedByConstraints(title string, constraints map[string]any) bool {
	if title == "" || len(constraints) == 0 {
		return false
	}

	for key, value := range constraints {
		if value == nil {
			continue
		}
		keyLower := strings.ToLower(key)
		if _, skip := constraintSkipKeys[keyLower]; skip {
			continue
		}
		if _, ok := productAttributeKeys[keyLower]; !ok {
			continue
		}
		if !f.matchesConstraint(title, keyLower, value) {
			return true
		}
	}
	return false
}

// matchesConstraint checks one attribute constraint against a title.
// Compound values ("gold or platinum", "red, blue") satisfy on ANY part.
func (f *ResultFilter) matchesConstraint(title, key string, value any) bool {
	if title == "" || value == nil {
		return true
	}

	switch v := value.(type) {
	case bool:
		if !v {
			return true
		}
		return strings.Contains(strings.ToLower(title), key)
	case string:
		lowered := strings.ToLower(strings.TrimSpace(v))
		if lowered == "" || lowered == "no" || lowered == "not answered" || lowered == "false" {
			return true
		}
	}

	normalizedTitle := strings.ToLower(strings.TrimSpace(title))
	normalizedValue := strings.ToLower(strings.TrimSpace(toString(value)))

	parts := compoundValuePattern.Split(normalizedValue, -1)
	matched := false
	checked := false
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		checked = true
		if titleContainsTerm(normalizedTitle, part) {
			matched = true
			break
		}
	}
	if !checked {
		return true
	}
	return matched
}

// MaterialConstraints extracts material exclusions from the constraints map:
// a no-plastic/no-synthetic request flips excludeSynthetics, and "no X" keys
// or "without X" values collect custom keywords.
func (f *ResultFilter) MaterialConstraints(constraints map[string]any) (excludeSynthetics bool, customKeywords []string) {
	for key, value := range constraints {
		if value == nil {
			continue
		}
		keyLower := strings.ToLower(key)
		valueLower := strings.ToLower(toString(value))
		if valueLower == "" {
			continue
		}

		if strings.Contains(keyLower, "plastic") || strings.Contains(keyLower, "petroleum") || strings.Contains(keyLower, "synthetic") {
			if strings.Contains(valueLower, "no") || strings.Contains(valueLower, "without") || strings.Contains(valueLower, "exclude") {
				excludeSynthetics = true
			}
		}

		if strings.HasPrefix(keyLower, "no ") {
			if material := strings.TrimSpace(keyLower[3:]); material != "" {
				customKeywords = append(customKeywords, material)
			}
		}

		if idx := strings.Index(valueLower, "without"); idx >= 0 {
			if material := strings.TrimSpace(valueLower[idx+len("without"):]); material != "" {
				customKeywords = append(customKeywords, material)
			}
		}
	}
	return excludeSynthetics, customKeywords
}

// ExcludedByMaterial drops a result whose title names an excluded material
func (f *ResultFilter) ExcludedByMaterial(title string, excludeSynthetics bool, customKeywords []string) bool {
	if title == "" {
		return false
	}
	if excludeSynthetics && ContainsSyntheticMaterial(title) {
		return true
	}
	if len(customKeywords) > 0 {
		normalized := strings.ToLower(strings.TrimSpace(title))
		for _, keyword := range customKeywords {
			if keyword != "" && strings.Contains(normalized, keyword) {
				return true
			}
		}
	}
	return false
}

// Apply runs the full filter chain over a result set. pricedAlways resolves
// a source id to its adapter's declared capability; nil treats every source
// as priced.
func (f *ResultFilter) Apply(results []*entities.NormalizedResult, intent *entities.SearchIntent, pricedAlways func(source string) bool) ([]*entities.NormalizedResult, FilterStats) {
	stats := FilterStats{Input: len(results)}
	if len(results) == 0 {
		return results, stats
	}

	var (
		minPrice, maxPrice *float64
		excludeKeywords    []string
		excludeMerchants   []string
		constraints        map[string]any
		excludeSynthetics  bool
		customMaterials    []string
	)
	if intent != nil {
		minPrice, maxPrice = intent.MinPrice, intent.MaxPrice
		excludeKeywords = intent.ExcludeKeywords
		excludeMerchants = intent.ExcludeMerchants
		constraints = intent.Constraints
		excludeSynthetics, customMaterials = f.MaterialConstraints(constraints)
	}

	kept := make([]*entities.NormalizedResult, 0, len(results))
	for _, res := range results {
		priced := true
		if pricedAlways != nil {
			priced = pricedAlways(res.Source)
		}
		if !f.ShouldInclude(res.Price, priced, minPrice, maxPrice) {
			stats.DroppedPrice++
			continue
		}
		if f.ExcludedByLists(res.Title, res.MerchantName, res.MerchantDomain, excludeKeywords, excludeMerchants) {
			stats.DroppedExclusion++
			continue
		}
		if f.ExcludedByConstraints(res.Title, constraints) {
			stats.DroppedConstraint++
			continue
		}
		if f.ExcludedByMaterial(res.Title, excludeSynthetics, customMaterials) {
			stats.DroppedMaterial++
			continue
		}
		kept = append(kept, res)
	}
	stats.Kept = len(kept)
	return kept, stats
}

// ContainsSyntheticMaterial reports whether text names a synthetic or
// petroleum-based material.
func ContainsSyntheticMaterial(text string) bool {
	if text == "" {
		return false
	}
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, keyword := range syntheticMaterialKeywords {
		if len(keyword) <= 3 && isAlpha(keyword) {
			if wordBoundaryMatch(normalized, keyword) {
				return true
			}
		} else if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}

// titleContainsTerm matches one term against a normalized title. Terms of
// three characters or fewer require word boundaries to avoid false positives
// like "red" inside "hundred".
func titleContainsTerm(normalizedTitle, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	if len(term) <= 3 {
		return wordBoundaryMatch(normalizedTitle, term)
	}
	return strings.Contains(normalizedTitle, term)
}

func wordBoundaryMatch(text, term string) bool {
	pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
	if err != nil {
		return strings.Contains(text, term)
	}
	return pattern.MatchString(text)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return s != ""
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
