package providers

import (
	"context"
)

// EmbeddingProvider defines a provider that can embed free text into a
// dense vector for similarity search and reranking.
type EmbeddingProvider interface {
	// EmbedText returns the embedding vector for a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
