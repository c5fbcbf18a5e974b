package main

import (
	"context"
	"log"
	"os"

	"github.com/dealscout/sourcing/internal/adapters/database"
	"github.com/dealscout/sourcing/internal/adapters/search"
	"github.com/dealscout/sourcing/internal/application/services"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/openai"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/postgres"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/typesense"
	"github.com/dealscout/sourcing/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				listings,
				sellers,
				search_analytics,
				vendors
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	vendorRepo := database.NewVendorAdapter(pgClient)

	// Embeddings are optional at seed time; without an API key the rows are
	// created and cmd/backfill fills in the vectors later.
	var embedder providers.EmbeddingProvider
	if cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Printf("OpenAI client unavailable, seeding without embeddings: %v", err)
		} else {
			embedder = client
		}
	}

	var vendorIndex repositories.VendorSearchIndex
	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Typesense unavailable, run cmd/indexer once it is up: %v", err)
	} else {
		adapter := search.NewVendorIndexAdapter(tsClient)
		if err := adapter.InitSchema(ctx); err != nil {
			log.Printf("Failed to init vendor index schema: %v", err)
		} else {
			vendorIndex = adapter
		}
	}

	ingestion := services.NewVendorIngestionService(vendorRepo, embedder, vendorIndex)

	summary, err := ingestion.IngestBatch(ctx, vendorSeeds())
	if err != nil {
		log.Fatalf("Seeding aborted: %v", err)
	}

	log.Printf("Seeding completed: %d processed, %d created, %d updated, %d embedded, %d skipped",
		summary.RecordsProcessed, summary.VendorsCreated, summary.VendorsUpdated,
		summary.VendorsEmbedded, summary.VendorsSkipped)
}

// vendorSeeds is the starter vendor directory: quote-based suppliers that
// never appear in provider price feeds but should still come back for
// service-intent searches.
func vendorSeeds() []services.VendorSeed {
	capacities := []int{120, 45, 8}

	return []services.VendorSeed{
		{
			Name:         "Acme Freight Lines",
			Website:      "https://www.acmefreight.com",
			Description:  "Palletized freight and full-container shipping with customs brokerage on every lane.",
			ServiceAreas: []string{"West Africa", "Gulf Coast"},
			Routes:       []string{"Houston-Lagos", "Lagos-Accra"},
			Capacity:     &capacities[0],
		},
		{
			Name:         "TransAtlas Logistics",
			Website:      "https://transatlaslogistics.com",
			Description:  "Air and sea cargo consolidation for commercial importers, door-to-door with insurance.",
			ServiceAreas: []string{"North America", "Europe", "West Africa"},
			Routes:       []string{"Newark-Lagos", "Rotterdam-Tema"},
			Capacity:     &capacities[1],
		},
		{
			Name:         "Harbor Custom Crating",
			Website:      "https://harborcrating.com",
			Description:  "Custom wooden crates and export packaging for fragile and oversized freight.",
			ServiceAreas: []string{"Pacific Northwest"},
		},
		{
			Name:         "Oak & Iron Workshop",
			Website:      "https://oakandironworkshop.com",
			Description:  "Handmade custom furniture: dining tables, bookshelves and built-ins in solid hardwood.",
			ServiceAreas: []string{"Portland Metro"},
			Capacity:     &capacities[2],
		},
		{
			Name:         "StitchCraft Upholstery",
			Website:      "https://stitchcraftupholstery.com",
			Description:  "Furniture reupholstery and custom cushion work for residential and commercial clients.",
			ServiceAreas: []string{"Chicago Metro"},
		},
		{
			Name:         "Summit Event Rentals",
			Website:      "https://summiteventrentals.com",
			Description:  "Event furniture, staging and tent rental with delivery, setup and teardown crews.",
			ServiceAreas: []string{"Denver Metro", "Front Range"},
		},
		{
			Name:         "BrightPrint Signage",
			Website:      "https://brightprintsignage.com",
			Description:  "Large-format printing, trade show displays and vehicle wraps, quoted per project.",
			ServiceAreas: []string{"Nationwide"},
		},
		{
			Name:         "GreenLeaf Catering Supply",
			Website:      "https://greenleafcatering.com",
			Description:  "Bulk catering and compostable serviceware supply for corporate events and venues.",
			ServiceAreas: []string{"Bay Area"},
		},
	}
}
