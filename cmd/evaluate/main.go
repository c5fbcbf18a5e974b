package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dealscout/sourcing/internal/adapters/providers/shopping"
	"github.com/dealscout/sourcing/internal/adapters/providers/vendordir"
	"github.com/dealscout/sourcing/internal/adapters/search"
	"github.com/dealscout/sourcing/internal/application/services"
	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/evaluation"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/openai"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/typesense"
	"github.com/dealscout/sourcing/pkg/config"
)

// pipelineWrapper adapts the fan-out pipeline to evaluation.SearchResultProvider.
// It runs the same filter-rank-adjust chain the sourcing service uses, minus
// persistence and reranking, so the scores reflect the deterministic ranker.
type pipelineWrapper struct {
	fanout      *services.SearchFanoutService
	registry    *services.ProviderRegistry
	filter      *services.ResultFilter
	scorer      *services.SearchScoringService
	constraints *services.ConstraintScorer
}

func (w *pipelineWrapper) Search(ctx context.Context, intent *entities.SearchIntent, limit int) ([]*entities.NormalizedResult, int, error) {
	response := w.fanout.SearchAll(ctx, intent, services.FanoutOptions{MaxResults: limit})

	kept, _ := w.filter.Apply(response.Results, intent, w.registry.PricedAlways)
	ranked := w.scorer.Rank(kept, intent)
	ranked = w.constraints.AdjustRanking(ranked, intent.Constraints)

	total := len(ranked)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, total, nil
}

func main() {
	var goldenPath string
	var minRecall float64
	var minMRR float64
	var minHitRate float64

	flag.StringVar(&goldenPath, "golden", "config/golden_queries.json", "Path to the golden query set")
	flag.Float64Var(&minRecall, "min-recall", 0, "Fail the run when avg recall@10 drops below this floor (0 disables)")
	flag.Float64Var(&minMRR, "min-mrr", 0, "Fail the run when avg mrr@10 drops below this floor (0 disables)")
	flag.Float64Var(&minHitRate, "min-hit-rate", 0, "Fail the run when the hit rate drops below this floor (0 disables)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Build the provider set from whatever credentials are configured. With
	// none, the deterministic mock provider runs the evaluation offline.
	searchProviders := shopping.NewSearchProviders(shopping.SearchProviderConfig{
		EbayClientID:      cfg.Providers.EbayClientID,
		EbayClientSecret:  cfg.Providers.EbayClientSecret,
		KrogerClientID:    cfg.Providers.KrogerClientID,
		KrogerSecret:      cfg.Providers.KrogerSecret,
		KrogerLocationZip: cfg.Providers.KrogerLocationZip,
		TicketmasterKey:   cfg.Providers.TicketmasterKey,
		RainforestKey:     cfg.Providers.RainforestKey,
		UseMockSearch:     cfg.Providers.UseMockSearch,
	})

	// The vendor directory joins the fan-out when its backends are up, so
	// service-intent queries are scored too.
	if cfg.OpenAI.APIKey != "" {
		embedder, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Printf("Warning: OpenAI client unavailable, skipping vendor directory: %v", err)
		} else if tsClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
			log.Printf("Warning: Typesense unavailable, skipping vendor directory: %v", err)
		} else {
			searchProviders = append(searchProviders, vendordir.NewAdapter(embedder, search.NewVendorIndexAdapter(tsClient)))
		}
	}

	registry := services.NewProviderRegistry(searchProviders...)
	fanout := services.NewSearchFanoutService(
		registry,
		services.NewResultNormalizer(),
		services.NewResultFilter(),
		services.NewSearchScoringService(),
		cfg.Search,
	)

	// Load golden queries
	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		log.Fatalf("Failed to load golden queries: %v", err)
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Fatalf("Invalid golden queries: %v", err)
	}

	runner := evaluation.NewRunner(&pipelineWrapper{
		fanout:      fanout,
		registry:    registry,
		filter:      services.NewResultFilter(),
		scorer:      services.NewSearchScoringService(),
		constraints: services.NewConstraintScorer(),
	})

	summary, err := runner.Run(context.Background(), queries)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	// Output results as JSON
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MinAvgRecallAt10: minRecall,
		MinAvgMRRAt10:    minMRR,
		MinHitRate:       minHitRate,
	})
	if violations := guardrails.Check(summary); len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, "guardrail violation:", v)
		}
		os.Exit(1)
	}
}
