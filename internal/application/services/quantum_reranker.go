package services

import (
	"context"
	"math"
	"sort"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/infrastructure/observability"
	"github.com/dealscout/sourcing/pkg/config"
)

const defaultRerankTopK = 50

// QuantumReranker reorders embedded results by a simulated photonic
// interference similarity blended with plain cosine similarity. The
// simulation maps query and candidate embeddings onto mode parameters,
// runs them through squeezing, displacement, and beamsplitter stages, and
// reads a weighted photon-number measurement as the similarity signal. It
// captures non-linear relationships a single cosine misses; whether that
// earns its keep is what the evaluation harness measures.
//
// Results without an embedding are passed through untouched, after the
// reranked block, in their incoming order.
type QuantumReranker struct {
	enabled     bool
	modes       int
	blendFactor float64
}

// NewQuantumReranker creates the reranker from configuration.
func NewQuantumReranker(cfg config.RerankConfig) *QuantumReranker {
	modes := cfg.Modes
	if modes <= 0 {
		modes = 8
	}
	return &QuantumReranker{
		enabled:     cfg.Enabled,
		modes:       modes,
		blendFactor: cfg.BlendFactor,
	}
}

// Available reports whether reranking is switched on.
func (q *QuantumReranker) Available() bool {
	return q.enabled
}

// Rerank reorders results by blended similarity against the query embedding
// and records the similarity components on each reranked result's score
// breakdown. Disabled reranking, an absent query embedding, or an empty
// input returns the results unchanged apart from the topK cut.
func (q *QuantumReranker) Rerank(ctx context.Context, queryEmbedding []float32, results []*entities.NormalizedResult, topK int) []*entities.NormalizedResult {
	if topK <= 0 {
		topK = defaultRerankTopK
	}
	if !q.enabled || len(results) == 0 || len(queryEmbedding) == 0 {
		return headResults(results, topK)
	}

	queryModes := reduceEmbedding(queryEmbedding, q.modes)

	var reranked []*entities.NormalizedResult
	var passthrough []*entities.NormalizedResult
	for _, result := range results {
		if len(result.Embedding) == 0 {
			passthrough = append(passthrough, result)
			continue
		}

		quantum := clamp01(simulateQuantumKernel(queryModes, reduceEmbedding(result.Embedding, q.modes)))
		classical := classicalSimilarity(queryEmbedding, result.Embedding)
		novelty := math.Max(0, quantum-classical)
		coherence := coherenceScore(quantum, classical)
		blended := q.blendFactor*quantum + (1-q.blendFactor)*classical + 0.1*novelty + 0.1*coherence

		breakdown := result.Score()
		if breakdown == nil {
			breakdown = &entities.ScoreBreakdown{}
			result.SetScore(breakdown)
		}
		breakdown.QuantumScore = roundPtr(quantum)
		breakdown.ClassicalScore = roundPtr(classical)
		breakdown.NoveltyScore = roundPtr(novelty)
		breakdown.CoherenceScore = roundPtr(coherence)
		breakdown.BlendedScore = roundPtr(blended)

		reranked = append(reranked, result)
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return *reranked[i].Score().BlendedScore > *reranked[j].Score().BlendedScore
	})

	observability.LoggerFromContext(ctx).Info().
		Int("reranked", len(reranked)).
		Int("without_embeddings", len(passthrough)).
		Msg("similarity reranking applied")

	return headResults(append(reranked, passthrough...), topK)
}

// coherenceScore measures match robustness: agreement between the two
// similarity channels keeps the quantum score, disagreement discounts it.
// Near-zero classical similarity carries no signal to agree with.
func coherenceScore(quantum, classical float64) float64 {
	if classical < 0.1 {
		return quantum
	}
	return clamp01(quantum * (1 - math.Abs(quantum-classical)))
}

// classicalSimilarity is the cosine similarity of the two raw embeddings,
// clipped to [0, 1].
func classicalSimilarity(query, candidate []float32) float64 {
	n := len(query)
	if len(candidate) < n {
		n = len(candidate)
	}
	var dot, queryNormSq, candidateNormSq float64
	for i := 0; i < n; i++ {
		qv := float64(query[i])
		cv := float64(candidate[i])
		dot += qv * cv
		queryNormSq += qv * qv
		candidateNormSq += cv * cv
	}
	similarity := dot / ((math.Sqrt(queryNormSq) + 1e-12) * (math.Sqrt(candidateNormSq) + 1e-12))
	return clamp01(similarity)
}

// reduceEmbedding maps a high-dimensional embedding onto per-mode circuit
// parameters in [0, π]: L2 normalize, truncate or zero-pad to the mode
// count, z-score with a ±2 clip, then shift into phase range.
func reduceEmbedding(embedding []float32, modes int) []float64 {
	vec := make([]float64, len(embedding))
	var sumSq float64
	for i, v := range embedding {
		vec[i] = float64(v)
		sumSq += vec[i] * vec[i]
	}
	norm := math.Sqrt(sumSq) + 1e-12
	for i := range vec {
		vec[i] /= norm
	}

	reduced := make([]float64, modes)
	copy(reduced, vec)

	var mean float64
	for _, v := range reduced {
		mean += v
	}
	mean /= float64(modes)

	var variance float64
	for _, v := range reduced {
		diff := v - mean
		variance += diff * diff
	}
	std := math.Sqrt(variance/float64(modes)) + 1e-8

	for i, v := range reduced {
		z := (v - mean) / std
		if z > 2 {
			z = 2
		} else if z < -2 {
			z = -2
		}
		reduced[i] = (z + 2) / 4 * math.Pi
	}
	return reduced
}

// simulateQuantumKernel runs the interference circuit on the reduced mode
// parameters: squeezed-state initialization, displacement encoding of the
// query, rotation plus displacement encoding of the candidate, a ring of
// beamsplitters with cross-connections, and a position-weighted measurement
// of the output amplitudes.
func simulateQuantumKernel(queryModes, candidateModes []float64) float64 {
	n := len(queryModes)

	const squeeze = 0.1
	base := math.Sinh(squeeze) * math.Sinh(squeeze)
	amplitudes := make([]float64, n)
	for i := range amplitudes {
		amplitudes[i] = base
	}

	for i := 0; i < n; i++ {
		displacement := math.Abs(queryModes[i]) * 0.5
		phase := queryModes[i] * 0.3
		amplitudes[i] += displacement * math.Cos(phase)
	}

	for i := 0; i < n; i++ {
		amplitudes[i] *= math.Cos(candidateModes[i])
		displacement := math.Abs(candidateModes[i]) * 0.3
		phase := candidateModes[i] * 0.2
		amplitudes[i] += displacement * math.Cos(phase)
	}

	output := make([]float64, n)
	copy(output, amplitudes)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		theta := candidateModes[i] * 0.1
		ct, st := math.Cos(theta), math.Sin(theta)
		ai, aj := output[i], output[j]
		output[i] = ct*ai + st*aj
		output[j] = -st*ai + ct*aj
	}

	if n >= 4 {
		theta := math.Pi / 8
		ct, st := math.Cos(theta), math.Sin(theta)
		for i := 0; i+2 < n; i += 2 {
			ai, aj := output[i], output[i+2]
			output[i] = ct*ai + st*aj
			output[i+2] = -st*ai + ct*aj
		}
	}

	var weightedSum, totalWeight float64
	for i := 0; i < n; i++ {
		weight := 1.0 / float64(i+1)
		weightedSum += weight * math.Abs(output[i])
		totalWeight += weight
	}
	return weightedSum / totalWeight
}

func roundPtr(v float64) *float64 {
	rounded := round4(v)
	return &rounded
}

func headResults(results []*entities.NormalizedResult, limit int) []*entities.NormalizedResult {
	if len(results) <= limit {
		return results
	}
	return results[:limit]
}
