package services

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

// Constraint weights. Structured vendor metadata earns the full weight;
// a plain text mention earns the reduced credit next to it.
const (
	weightOrigin        = 1.0
	creditOriginText    = 0.6
	weightDestination   = 0.8
	creditDestText      = 0.5
	weightVehicleClass  = 0.8
	creditVehicleText   = 0.5
	weightPassengers    = 0.6
	creditPassengerText = 0.3
	weightLocation      = 0.7
	creditLocationText  = 0.4
	weightBudget        = 0.5
	creditBudget        = 0.3
	weightFeatures      = 0.4
	weightGenericKey    = 0.3
)

// genericConstraintKeys are free-form attribute constraints matched directly
// against the result text.
var genericConstraintKeys = []string{
	"color", "material", "style", "size", "brand", "condition", "cuisine", "dietary",
}

// ConstraintScorer measures how well a result satisfies the intent's
// structured constraints. Satisfied constraints add weight, unsatisfied ones
// add nothing, and the score is the satisfied share of the weight attempted.
// It is additive on purpose: a bad structured extraction degrades the signal
// toward neutral instead of zeroing out results.
type ConstraintScorer struct{}

// NewConstraintScorer creates a constraint scorer.
func NewConstraintScorer() *ConstraintScorer {
	return &ConstraintScorer{}
}

// Score returns the constraint satisfaction in [0, 1]. No constraints, or
// none the scorer recognizes, returns the neutral 0.5.
func (c *ConstraintScorer) Score(result *entities.NormalizedResult, constraints map[string]any) float64 {
	if len(constraints) == 0 {
		return 0.5
	}

	searchable := constraintSearchText(result)
	meta := result.RawData

	score := 0.0
	totalWeight := 0.0

	if origin, ok := constraintText(constraints, "origin"); ok {
		totalWeight += weightOrigin
		if metaListContains(meta, "routes", origin) {
			score += weightOrigin
		} else if strings.Contains(searchable, origin) {
			score += creditOriginText
		}
	}

	if destination, ok := constraintText(constraints, "destination"); ok {
		totalWeight += weightDestination
		if metaListContains(meta, "routes", destination) {
			score += weightDestination
		} else if strings.Contains(searchable, destination) {
			score += creditDestText
		}
	}

	if class, ok := constraintText(constraints, "aircraft_class"); ok {
		totalWeight += weightVehicleClass
		if metaListContains(meta, "aircraft_classes", class) {
			score += weightVehicleClass
		} else if strings.Contains(searchable, class) {
			score += creditVehicleText
		}
	}

	if rawPax, present := constraints["passengers"]; present {
		totalWeight += weightPassengers
		if pax, ok := constraintInt(rawPax); ok {
			if capacity, found := vendorCapacity(meta); found && capacity >= pax {
				score += weightPassengers
			} else if strings.Contains(searchable, strconv.Itoa(pax)) || strings.Contains(searchable, "passenger") {
				score += creditPassengerText
			}
		}
	}

	if location, ok := constraintText(constraints, "location"); ok {
		totalWeight += weightLocation
		if metaListContains(meta, "service_area", location) {
			score += weightLocation
		} else if strings.Contains(searchable, location) {
			score += creditLocationText
		}
	}

	// Budget fit is the price scorer's job; its presence here earns flat
	// partial credit so budget-constrained intents are not penalized.
	if hasAnyKey(constraints, "budget", "max_budget", "budget_range") {
		totalWeight += weightBudget
		score += creditBudget
	}

	if features := constraintList(constraints, "features"); len(features) > 0 {
		totalWeight += weightFeatures
		matched := 0
		for _, feature := range features {
			if strings.Contains(searchable, strings.ToLower(feature)) {
				matched++
			}
		}
		score += weightFeatures * float64(matched) / float64(len(features))
	}

	for _, key := range genericConstraintKeys {
		value, ok := constraintText(constraints, key)
		if !ok {
			continue
		}
		totalWeight += weightGenericKey
		if strings.Contains(searchable, value) {
			score += weightGenericKey
		}
	}

	if totalWeight <= 0 {
		return 0.5
	}
	satisfaction := score / totalWeight
	if satisfaction > 1.0 {
		satisfaction = 1.0
	}
	return satisfaction
}

// AdjustRanking folds the constraint signal into already-ranked results:
// each result's combined score shifts by 0.2·(constraint−0.5) and the set is
// stable re-sorted. Neutral results keep their score and relative order.
func (c *ConstraintScorer) AdjustRanking(results []*entities.NormalizedResult, constraints map[string]any) []*entities.NormalizedResult {
	if len(results) == 0 {
		return results
	}

	adjusted := make([]*entities.NormalizedResult, len(results))
	copy(adjusted, results)

	for _, result := range adjusted {
		satisfaction := c.Score(result, constraints)

		breakdown := result.Score()
		if breakdown == nil {
			breakdown = &entities.ScoreBreakdown{}
			result.SetScore(breakdown)
		}
		breakdown.Constraint = round4(satisfaction)
		breakdown.Combined = round4(breakdown.Combined + 0.2*(satisfaction-0.5))
	}

	sort.SliceStable(adjusted, func(i, j int) bool {
		return adjusted[i].CombinedScore() > adjusted[j].CombinedScore()
	})
	return adjusted
}

// constraintSearchText builds the lower-cased text block constraints are
// matched against: the title plus the description or snippet when present.
func constraintSearchText(result *entities.NormalizedResult) string {
	description := ""
	if result.RawData != nil {
		if d, ok := result.RawData["description"].(string); ok && d != "" {
			description = d
		} else if s, ok := result.RawData["snippet"].(string); ok {
			description = s
		}
	}
	return strings.ToLower(result.Title + " " + description)
}

// constraintText reads a constraint value as a lower-cased non-empty string.
func constraintText(constraints map[string]any, key string) (string, bool) {
	raw, present := constraints[key]
	if !present {
		return "", false
	}
	value := strings.ToLower(strings.TrimSpace(toString(raw)))
	if value == "" {
		return "", false
	}
	return value, true
}

// constraintList reads a constraint as a list, coercing a bare string into a
// single-element list.
func constraintList(constraints map[string]any, key string) []string {
	switch v := constraints[key].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		var values []string
		for _, item := range v {
			if s := strings.TrimSpace(toString(item)); s != "" {
				values = append(values, s)
			}
		}
		return values
	default:
		return nil
	}
}

func constraintInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// metaListContains reports whether any element of the named metadata list
// contains the needle, case-insensitively.
func metaListContains(meta map[string]any, key, needle string) bool {
	if meta == nil {
		return false
	}
	switch list := meta[key].(type) {
	case []string:
		for _, item := range list {
			if strings.Contains(strings.ToLower(item), needle) {
				return true
			}
		}
	case []any:
		for _, item := range list {
			if strings.Contains(strings.ToLower(toString(item)), needle) {
				return true
			}
		}
	}
	return false
}

// vendorCapacity reads the vendor's seat capacity from metadata, falling
// back from capacity to max_passengers.
func vendorCapacity(meta map[string]any) (int, bool) {
	if meta == nil {
		return 0, false
	}
	if capacity, ok := constraintInt(meta["capacity"]); ok && capacity > 0 {
		return capacity, true
	}
	if capacity, ok := constraintInt(meta["max_passengers"]); ok && capacity > 0 {
		return capacity, true
	}
	return 0, false
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, present := m[key]; present {
			return true
		}
	}
	return false
}
