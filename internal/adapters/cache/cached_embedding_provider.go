package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dealscout/sourcing/internal/domain/providers"
)

// CachedEmbeddingProvider wraps an EmbeddingProvider with Redis caching keyed
// by a hash of the input text. Queries repeat often and embeddings for a given
// model are deterministic, so hits skip the OpenAI round trip entirely.
type CachedEmbeddingProvider struct {
	provider providers.EmbeddingProvider
	cache    providers.CacheProvider
}

// NewCachedEmbeddingProvider creates a new cached embedding provider
func NewCachedEmbeddingProvider(provider providers.EmbeddingProvider, cache providers.CacheProvider) providers.EmbeddingProvider {
	return &CachedEmbeddingProvider{
		provider: provider,
		cache:    cache,
	}
}

// embeddingTTL is 24 hours: long enough to cover a browsing session's
// repeated queries without pinning stale vectors forever.
const embeddingTTL = 86400

func embeddingCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s", hex.EncodeToString(sum[:]))
}

// EmbedText returns the embedding for a single text, cached
func (p *CachedEmbeddingProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	cacheKey := embeddingCacheKey(text)

	if cached, err := p.cache.Get(ctx, cacheKey); err == nil {
		var vector []float32
		if err := json.Unmarshal(cached, &vector); err == nil && len(vector) > 0 {
			return vector, nil
		}
	}

	vector, err := p.provider.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(vector); err == nil {
			if err := p.cache.Set(bgCtx, cacheKey, data, embeddingTTL); err != nil {
				log.Printf("Failed to cache embedding: %v", err)
			}
		}
	}()

	return vector, nil
}

// EmbedBatch returns one vector per text, serving cached entries and only
// sending the misses to the underlying provider.
func (p *CachedEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = embeddingCacheKey(text)
	}

	cached, _ := p.cache.GetMulti(ctx, keys)

	vectors := make([][]float32, len(texts))
	var missingTexts []string
	var missingIdx []int

	for i := range texts {
		if data, ok := cached[keys[i]]; ok {
			var vector []float32
			if err := json.Unmarshal(data, &vector); err == nil && len(vector) > 0 {
				vectors[i] = vector
				continue
			}
		}
		missingTexts = append(missingTexts, texts[i])
		missingIdx = append(missingIdx, i)
	}

	if len(missingTexts) == 0 {
		return vectors, nil
	}

	fresh, err := p.provider.EmbedBatch(ctx, missingTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missingTexts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(fresh), len(missingTexts))
	}

	items := make(map[string][]byte, len(fresh))
	for j, vector := range fresh {
		i := missingIdx[j]
		vectors[i] = vector
		if data, err := json.Marshal(vector); err == nil {
			items[keys[i]] = data
		}
	}

	go func() {
		bgCtx := context.Background()
		if err := p.cache.SetMulti(bgCtx, items, embeddingTTL); err != nil {
			log.Printf("Failed to batch cache embeddings: %v", err)
		}
	}()

	return vectors, nil
}
