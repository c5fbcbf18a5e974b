package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dealscout/sourcing/internal/adapters/database"
	"github.com/dealscout/sourcing/internal/adapters/search"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/postgres"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/typesense"
	"github.com/dealscout/sourcing/pkg/config"
)

const indexBatchSize = 500

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Printf("Reindex complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	vendorRepo := database.NewVendorAdapter(pgClient)

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Println("Reset requested, deleting vendors collection")
		_, err := tsClient.Client().Collection(typesense.VendorsCollection).Delete(ctx)
		if err != nil {
			log.Printf("Warning: failed to delete collection: %v", err)
		}
	}

	vendorIndex := search.NewVendorIndexAdapter(tsClient)
	if err := vendorIndex.InitSchema(ctx); err != nil {
		return err
	}

	indexed := 0
	skipped := 0
	offset := 0

	// Page through the directory so a large vendor table never sits in
	// memory all at once.
	for {
		vendors, err := vendorRepo.List(ctx, repositories.VendorFilter{
			Limit:  indexBatchSize,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		if len(vendors) == 0 {
			break
		}

		for _, vendor := range vendors {
			if vendor == nil {
				continue
			}
			if !vendor.HasEmbedding() {
				skipped++
				continue
			}

			if err := vendorIndex.IndexVendor(ctx, vendor); err != nil {
				log.Printf("Failed to index vendor %s: %v", vendor.ID, err)
				continue
			}
			indexed++
		}

		log.Printf("Indexed %d vendors so far...", indexed)

		if len(vendors) < indexBatchSize {
			break
		}
		offset += indexBatchSize

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if skipped > 0 {
		log.Printf("Skipped %d vendors without embeddings. Run cmd/backfill to compute them.", skipped)
	}

	log.Printf("Indexing complete. %d vendors indexed.", indexed)
	return nil
}
