package evaluation

import "time"

// Intent represents the labeled intent category of a golden query.
type Intent string

const (
	IntentProduct  Intent = "product"  // e.g., "standing desk with drawers"
	IntentBrand    Intent = "brand"    // e.g., "herman miller aeron"
	IntentCategory Intent = "category" // e.g., "office furniture"
	IntentService  Intent = "service"  // quote-based, e.g., "pallet freight to lagos"
)

// ValidIntents returns all valid intent values.
func ValidIntents() []Intent {
	return []Intent{IntentProduct, IntentBrand, IntentCategory, IntentService}
}

// IsValid checks if the intent value is one of the defined constants.
func (i Intent) IsValid() bool {
	switch i {
	case IntentProduct, IntentBrand, IntentCategory, IntentService:
		return true
	}
	return false
}

// GoldenQuery represents a labeled test query with expected outcomes.
// ExpectedDomains are merchant domains that should appear in the top
// results; ExpectedKeywords are terms that should show up in result titles.
type GoldenQuery struct {
	ID               string   `json:"id"`
	Query            string   `json:"query"`
	Intent           Intent   `json:"intent"`
	ExpectedDomains  []string `json:"expected_domains"`
	ExpectedKeywords []string `json:"expected_keywords"`
	Difficulty       string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID          string
	Query            string
	Intent           Intent
	RecallAt10       float64
	MRRAt10          float64
	KeywordCoverage  float64
	ResultCount      int
	RetrievedDomains []string
	Latency          time.Duration
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	TotalQueries       int
	AvgRecallAt10      float64
	AvgMRRAt10         float64
	AvgKeywordCoverage float64
	AvgLatency         time.Duration
	QueriesWithHits    int // queries that returned at least 1 result
	ByIntent           map[Intent]*IntentSummary
}

// IntentSummary holds metrics grouped by intent type.
type IntentSummary struct {
	Count         int
	AvgRecallAt10 float64
	AvgMRRAt10    float64
}
