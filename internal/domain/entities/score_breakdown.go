package entities

// ScoreBreakdown carries the independent sub-scores and the final combined
// score that determines ordering. It lives in a result's provenance under the
// "score" key, is recomputed on every scoring pass, and is never persisted
// apart from the result it scores.
type ScoreBreakdown struct {
	Relevance           float64 `json:"relevance"`
	Price               float64 `json:"price"`
	Quality             float64 `json:"quality"`
	Diversity           float64 `json:"diversity"`
	SourceFit           float64 `json:"source_fit"`
	AffiliateMultiplier float64 `json:"affiliate_multiplier"`
	Constraint          float64 `json:"constraint"`

	// Set only when the similarity reranking layer ran for this result.
	QuantumScore   *float64 `json:"quantum_score,omitempty"`
	ClassicalScore *float64 `json:"classical_score,omitempty"`
	NoveltyScore   *float64 `json:"novelty_score,omitempty"`
	CoherenceScore *float64 `json:"coherence_score,omitempty"`
	BlendedScore   *float64 `json:"blended_score,omitempty"`

	Combined float64 `json:"combined"`
}

// Reranked reports whether the similarity layer scored this result
func (s *ScoreBreakdown) Reranked() bool {
	return s != nil && s.BlendedScore != nil
}
