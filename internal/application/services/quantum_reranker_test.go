package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/pkg/config"
)

func rerankResult(title string, embedding []float32) *entities.NormalizedResult {
	return &entities.NormalizedResult{
		Title:     title,
		URL:       "https://example.com/" + title,
		Source:    "vendordir",
		Embedding: embedding,
	}
}

func enabledReranker() *QuantumReranker {
	return NewQuantumReranker(config.RerankConfig{Enabled: true, Modes: 8, BlendFactor: 0.7})
}

func TestClassicalSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, classicalSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-6)
	assert.InDelta(t, 0.0, classicalSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	// Negative cosine clips to zero rather than going below.
	assert.InDelta(t, 0.0, classicalSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.InDelta(t, math.Sqrt2/2, classicalSimilarity([]float32{1, 0}, []float32{1, 1}), 1e-6)
}

func TestCoherenceScore(t *testing.T) {
	// Below the classical floor the quantum channel stands alone.
	assert.InDelta(t, 0.5, coherenceScore(0.5, 0.05), 1e-9)
	// Agreement keeps the quantum score, disagreement discounts it.
	assert.InDelta(t, 0.64, coherenceScore(0.8, 0.6), 1e-9)
	// Perfect agreement is no discount at all.
	assert.InDelta(t, 0.9, coherenceScore(0.9, 0.9), 1e-9)
}

func TestReduceEmbeddingConstantVector(t *testing.T) {
	reduced := reduceEmbedding([]float32{1, 1, 1, 1}, 4)
	require.Len(t, reduced, 4)
	for _, v := range reduced {
		assert.InDelta(t, math.Pi/2, v, 1e-6)
	}
}

func TestReduceEmbeddingPadsAndBounds(t *testing.T) {
	reduced := reduceEmbedding([]float32{1}, 4)
	require.Len(t, reduced, 4)
	for _, v := range reduced {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, math.Pi)
	}
	// The lone signal dimension stands out from the zero padding.
	assert.Greater(t, reduced[0], reduced[1])
	assert.InDelta(t, reduced[1], reduced[2], 1e-9)
	assert.InDelta(t, reduced[1], reduced[3], 1e-9)
}

func TestSimulateQuantumKernelDeterministic(t *testing.T) {
	query := reduceEmbedding([]float32{0.3, -0.2, 0.9, 0.1, -0.5, 0.4, 0.7, -0.8}, 8)
	candidate := reduceEmbedding([]float32{0.1, 0.6, -0.3, 0.8, 0.2, -0.7, 0.5, 0.4}, 8)

	first := simulateQuantumKernel(query, candidate)
	second := simulateQuantumKernel(query, candidate)
	assert.Equal(t, first, second)
}

func TestQuantumSimilarityStaysInRange(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0, 0, 0, 0, 0, 0},
		{0.5, 0.5, 0.5, 0.5, -0.5, -0.5, -0.5, -0.5},
		{0.3, -0.2, 0.9, 0.1, -0.5, 0.4, 0.7, -0.8},
		{10, 20, -30, 5, 0, 1, -2, 8},
	}
	query := reduceEmbedding(vectors[0], 8)
	for _, vec := range vectors {
		similarity := clamp01(simulateQuantumKernel(query, reduceEmbedding(vec, 8)))
		assert.GreaterOrEqual(t, similarity, 0.0)
		assert.LessOrEqual(t, similarity, 1.0)
	}
}

func TestRerankDisabledPassesThrough(t *testing.T) {
	reranker := NewQuantumReranker(config.RerankConfig{Enabled: false, Modes: 8, BlendFactor: 0.7})

	results := []*entities.NormalizedResult{
		rerankResult("b", []float32{0, 1, 0}),
		rerankResult("a", []float32{1, 0, 0}),
	}
	out := reranker.Rerank(context.Background(), []float32{1, 0, 0}, results, 10)

	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Title)
	assert.Equal(t, "a", out[1].Title)
	assert.False(t, out[0].Score().Reranked())
}

func TestRerankWithoutQueryEmbeddingPassesThrough(t *testing.T) {
	reranker := enabledReranker()

	results := []*entities.NormalizedResult{
		rerankResult("a", []float32{1, 0, 0}),
		rerankResult("b", []float32{0, 1, 0}),
	}
	out := reranker.Rerank(context.Background(), nil, results, 1)

	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Title)
}

func TestRerankOrdersByBlendedScore(t *testing.T) {
	reranker := enabledReranker()
	query := []float32{0.3, -0.2, 0.9, 0.1, -0.5, 0.4, 0.7, -0.8}

	candidates := [][]float32{
		{0.3, -0.2, 0.9, 0.1, -0.5, 0.4, 0.7, -0.8},
		{0.1, 0.6, -0.3, 0.8, 0.2, -0.7, 0.5, 0.4},
		{-0.9, 0.1, 0.2, -0.4, 0.6, 0.3, -0.1, 0.5},
	}
	results := []*entities.NormalizedResult{
		rerankResult("first", candidates[0]),
		rerankResult("second", candidates[1]),
		rerankResult("third", candidates[2]),
	}

	out := reranker.Rerank(context.Background(), query, results, 10)
	require.Len(t, out, 3)

	// Every embedded result carries the full component set, and the output
	// is sorted by the blended score those components produce.
	queryModes := reduceEmbedding(query, 8)
	for _, result := range out {
		breakdown := result.Score()
		require.True(t, breakdown.Reranked())

		var candidate []float32
		for i, r := range results {
			if r.Title == result.Title {
				candidate = candidates[i]
			}
		}
		quantum := clamp01(simulateQuantumKernel(queryModes, reduceEmbedding(candidate, 8)))
		classical := classicalSimilarity(query, candidate)
		novelty := math.Max(0, quantum-classical)
		coherence := coherenceScore(quantum, classical)
		blended := 0.7*quantum + 0.3*classical + 0.1*novelty + 0.1*coherence

		assert.InDelta(t, round4(quantum), *breakdown.QuantumScore, 1e-9)
		assert.InDelta(t, round4(classical), *breakdown.ClassicalScore, 1e-9)
		assert.InDelta(t, round4(novelty), *breakdown.NoveltyScore, 1e-9)
		assert.InDelta(t, round4(coherence), *breakdown.CoherenceScore, 1e-9)
		assert.InDelta(t, round4(blended), *breakdown.BlendedScore, 1e-9)
	}
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, *out[i-1].Score().BlendedScore, *out[i].Score().BlendedScore)
	}
}

func TestRerankKeepsUnembeddedResultsAfterReranked(t *testing.T) {
	reranker := enabledReranker()
	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}

	results := []*entities.NormalizedResult{
		rerankResult("no-embedding-1", nil),
		rerankResult("embedded", []float32{1, 0, 0, 0, 0, 0, 0, 0}),
		rerankResult("no-embedding-2", nil),
	}

	out := reranker.Rerank(context.Background(), query, results, 10)
	require.Len(t, out, 3)
	assert.Equal(t, "embedded", out[0].Title)
	assert.Equal(t, "no-embedding-1", out[1].Title)
	assert.Equal(t, "no-embedding-2", out[2].Title)
	assert.Nil(t, out[1].Score())
	assert.True(t, out[0].Score().Reranked())
}

func TestRerankAppliesTopK(t *testing.T) {
	reranker := enabledReranker()
	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}

	var results []*entities.NormalizedResult
	for i := 0; i < 5; i++ {
		results = append(results, rerankResult(string(rune('a'+i)), []float32{1, float32(i) * 0.1, 0, 0, 0, 0, 0, 0}))
	}

	out := reranker.Rerank(context.Background(), query, results, 3)
	assert.Len(t, out, 3)
}

func TestRerankPreservesExistingBreakdown(t *testing.T) {
	reranker := enabledReranker()

	result := rerankResult("scored", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	result.SetScore(&entities.ScoreBreakdown{Relevance: 0.8, Combined: 0.42})

	out := reranker.Rerank(context.Background(), []float32{1, 0, 0, 0, 0, 0, 0, 0}, []*entities.NormalizedResult{result}, 10)
	require.Len(t, out, 1)

	breakdown := out[0].Score()
	assert.InDelta(t, 0.8, breakdown.Relevance, 1e-9)
	assert.InDelta(t, 0.42, breakdown.Combined, 1e-9)
	assert.True(t, breakdown.Reranked())
}
