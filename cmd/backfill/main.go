package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealscout/sourcing/internal/adapters/database"
	"github.com/dealscout/sourcing/internal/adapters/search"
	"github.com/dealscout/sourcing/internal/application/services"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/openai"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/postgres"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/typesense"
	"github.com/dealscout/sourcing/pkg/config"
)

func main() {
	var workers int
	var maxRetries int
	var vendorID string

	flag.IntVar(&workers, "workers", 3, "Number of concurrent workers")
	flag.IntVar(&maxRetries, "max-retries", 3, "Max retries per vendor")
	flag.StringVar(&vendorID, "vendor", "", "Single vendor ID to backfill")
	flag.Parse()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup DB
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	vendorRepo := database.NewVendorAdapter(pgClient)

	// Setup embedding provider
	provider, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("Failed to create OpenAI client: %v", err)
	}

	// Freshly embedded vendors go straight into the index when Typesense
	// is reachable. Without it the indexer picks them up on its next run.
	var vendorIndex repositories.VendorSearchIndex
	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Warning: Typesense unavailable, embeddings will be indexed on the next reindex: %v", err)
	} else {
		adapter := search.NewVendorIndexAdapter(tsClient)
		if err := adapter.InitSchema(context.Background()); err != nil {
			log.Printf("Warning: failed to init vendor index schema: %v", err)
		} else {
			vendorIndex = adapter
		}
	}

	// Setup service
	svc := services.NewEmbeddingBackfillService(vendorRepo, provider, vendorIndex, workers, maxRetries)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()

	if vendorID != "" {
		log.Printf("Backfilling single vendor: %s", vendorID)
		if err := svc.BackfillVendor(ctx, vendorID); err != nil {
			log.Fatalf("Failed to backfill vendor %s: %v", vendorID, err)
		}
		log.Printf("Successfully backfilled %s", vendorID)
	} else {
		log.Printf("Starting backfill with %d workers...", workers)
		summary, err := svc.BackfillAll(ctx)
		if err != nil {
			log.Printf("Backfill failed: %v", err)
		}

		if summary != nil {
			log.Printf("Backfill complete in %s", time.Since(start))
			log.Printf("Total processed: %d", summary.TotalProcessed)
			log.Printf("Success: %d", summary.SuccessCount)
			log.Printf("Failed: %d", summary.FailureCount)
		}
	}
}
