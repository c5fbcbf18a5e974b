package evaluation

import "fmt"

// GuardrailConfig sets the quality floors a golden-query run must clear
// before a ranking change ships. A zero value disables that gate.
type GuardrailConfig struct {
	MinAvgRecallAt10 float64
	MinAvgMRRAt10    float64
	MinHitRate       float64 // fraction of queries returning at least one result
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	return &Guardrails{config: config}
}

// Check returns one violation message per gate the summary fails. An empty
// slice means the run cleared every configured floor.
func (g *Guardrails) Check(summary *EvalSummary) []string {
	if summary == nil || summary.TotalQueries == 0 {
		return []string{"no queries were evaluated"}
	}

	var violations []string

	if g.config.MinAvgRecallAt10 > 0 && summary.AvgRecallAt10 < g.config.MinAvgRecallAt10 {
		violations = append(violations, fmt.Sprintf(
			"avg recall@10 %.3f is below the %.3f floor",
			summary.AvgRecallAt10, g.config.MinAvgRecallAt10))
	}

	if g.config.MinAvgMRRAt10 > 0 && summary.AvgMRRAt10 < g.config.MinAvgMRRAt10 {
		violations = append(violations, fmt.Sprintf(
			"avg mrr@10 %.3f is below the %.3f floor",
			summary.AvgMRRAt10, g.config.MinAvgMRRAt10))
	}

	hitRate := float64(summary.QueriesWithHits) / float64(summary.TotalQueries)
	if g.config.MinHitRate > 0 && hitRate < g.config.MinHitRate {
		violations = append(violations, fmt.Sprintf(
			"hit rate %.3f is below the %.3f floor",
			hitRate, g.config.MinHitRate))
	}

	return violations
}
