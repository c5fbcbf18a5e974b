package typesense

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/pkg/config"
)

func TestClient_SchemaAndIndexing(t *testing.T) {
	url := os.Getenv("TEST_TYPESENSE_URL")
	if url == "" {
		t.Skip("TEST_TYPESENSE_URL not set; skipping Typesense client test")
	}

	apiKey := os.Getenv("TEST_TYPESENSE_API_KEY")
	if apiKey == "" {
		apiKey = "xyz"
	}

	client, err := NewClient(&config.TypesenseConfig{URL: url, APIKey: apiKey})
	require.NoError(t, err)
	require.NotNil(t, client)

	ctx := context.Background()

	// InitSchema is idempotent: a second call finds the existing collection
	// and returns without error.
	require.NoError(t, client.InitSchema(ctx))
	assert.NoError(t, client.InitSchema(ctx))

	embedding := make([]float32, EmbeddingDims)
	for i := range embedding {
		embedding[i] = 0.001 * float32(i%100)
	}

	doc := map[string]interface{}{
		"id":            "test-vendor-1",
		"name":          "Test Charter Co",
		"domain":        "testcharter.example.com",
		"website":       "https://testcharter.example.com",
		"description":   "Private charter vendor used by the client test",
		"service_areas": []string{"NYC", "MIA"},
		"routes":        []string{"NYC-MIA"},
		"capacity":      8,
		"embedding":     embedding,
		"created_at":    time.Now().Unix(),
	}
	assert.NoError(t, client.IndexVendor(ctx, doc))
}
