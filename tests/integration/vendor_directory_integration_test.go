//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/internal/adapters/database"
	"github.com/dealscout/sourcing/internal/application/services"
	"github.com/dealscout/sourcing/internal/domain/repositories"
)

// staticEmbedder avoids calling a live embedding API: every text maps to a
// fixed-dimension vector derived from its length.
type staticEmbedder struct{}

func (staticEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

func (s staticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func TestVendorIngestionIntegration(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	client := newTestPostgresClient(t)
	defer client.Close()

	runMigrations(t, client.DB(), "../../migrations/001_initial_schema.sql")
	cleanupTables(t, client.DB(), "vendors")

	vendorRepo := database.NewVendorAdapter(client)
	ingestion := services.NewVendorIngestionService(vendorRepo, staticEmbedder{}, nil)

	ctx := context.Background()
	seeds := []services.VendorSeed{
		{
			Name:         "Acme Freight Lines",
			Website:      "https://www.acmefreight.com",
			Description:  "Palletized freight shipping",
			ServiceAreas: []string{"West Africa"},
			Routes:       []string{"Houston-Lagos"},
		},
		{
			Name:        "Oak & Iron Workshop",
			Website:     "https://oakandironworkshop.com",
			Description: "Custom furniture",
		},
	}

	summary, err := ingestion.IngestBatch(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.RecordsProcessed)
	assert.Equal(t, 2, summary.VendorsCreated)
	assert.Equal(t, 2, summary.VendorsEmbedded)

	stored, err := vendorRepo.GetByDomain(ctx, "acmefreight.com")
	require.NoError(t, err)
	assert.Equal(t, "Acme Freight Lines", stored.Name)
	assert.True(t, stored.HasEmbedding())
	assert.Equal(t, []string{"West Africa"}, stored.ServiceAreas)

	// Re-running the same batch must update in place, not duplicate.
	summary, err = ingestion.IngestBatch(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.VendorsCreated)
	assert.Equal(t, 2, summary.VendorsUpdated)

	vendors, err := vendorRepo.List(ctx, repositories.VendorFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, vendors, 2)
}

func TestVendorBackfillIntegration(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	client := newTestPostgresClient(t)
	defer client.Close()

	runMigrations(t, client.DB(), "../../migrations/001_initial_schema.sql")
	cleanupTables(t, client.DB(), "vendors")

	vendorRepo := database.NewVendorAdapter(client)

	// Seed without an embedder so every row starts unembedded.
	ingestion := services.NewVendorIngestionService(vendorRepo, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, created, err := ingestion.UpsertVendor(ctx, services.VendorSeed{
			Name:        fmt.Sprintf("Vendor %d", i),
			Website:     fmt.Sprintf("https://vendor-%d.example.com", i),
			Description: "Quote-based supplier",
		})
		require.NoError(t, err)
		require.True(t, created)
	}

	pending, err := vendorRepo.ListWithoutEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 5)

	backfill := services.NewEmbeddingBackfillService(vendorRepo, staticEmbedder{}, nil, 2, 1)
	summary, err := backfill.BackfillAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalProcessed)
	assert.Equal(t, 5, summary.SuccessCount)

	pending, err = vendorRepo.ListWithoutEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
