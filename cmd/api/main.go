package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealscout/sourcing/internal/adapters/cache"
	"github.com/dealscout/sourcing/internal/adapters/database"
	"github.com/dealscout/sourcing/internal/adapters/events"
	"github.com/dealscout/sourcing/internal/adapters/providers/shopping"
	"github.com/dealscout/sourcing/internal/adapters/providers/vendordir"
	"github.com/dealscout/sourcing/internal/adapters/search"
	"github.com/dealscout/sourcing/internal/api/handlers"
	"github.com/dealscout/sourcing/internal/api/middleware"
	"github.com/dealscout/sourcing/internal/api/routes"
	"github.com/dealscout/sourcing/internal/application/services"
	"github.com/dealscout/sourcing/internal/domain/providers"
	"github.com/dealscout/sourcing/internal/domain/repositories"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/openai"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/postgres"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/redis"
	"github.com/dealscout/sourcing/internal/infrastructure/clients/typesense"
	"github.com/dealscout/sourcing/internal/infrastructure/observability"
	"github.com/dealscout/sourcing/pkg/config"
)

func main() {

	// Load configuration

	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	searchMetrics, err := services.NewSearchMetrics()
	if err != nil {
		log.Printf("Warning: Failed to initialize search metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		redisClient = nil
		// Continue without Redis - the application can work without caching
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize Typesense client
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Warning: Failed to initialize Typesense client: %v", err)
		typesenseClient = nil
	} else {
		log.Println("Typesense client initialized successfully")
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Initialize event bus for real-time updates
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	// Initialize adapters

	// Create base listing adapter
	baseListingAdapter := database.NewListingAdapter(pgClient)

	// Wrap with caching if Redis is available (for read performance optimization)
	var listingAdapter repositories.ListingRepository
	if cacheProvider != nil {
		listingAdapter = database.NewCachedListingAdapter(baseListingAdapter, cacheProvider)
		log.Println("Listing adapter wrapped with caching layer")
	} else {
		listingAdapter = baseListingAdapter
		log.Println("Listing adapter running without cache (Redis unavailable)")
	}

	sellerAdapter := database.NewSellerAdapter(pgClient)
	analyticsAdapter := database.NewSearchAnalyticsAdapter(pgClient)

	// Embedding provider backs the vendor directory and the reranker
	var embedder providers.EmbeddingProvider
	if cfg.OpenAI.APIKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set; vendor search and reranking disabled")
	} else {
		openaiClient, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Printf("Warning: Failed to initialize OpenAI client: %v", err)
		} else if cacheProvider != nil {
			embedder = cache.NewCachedEmbeddingProvider(openaiClient, cacheProvider)
		} else {
			embedder = openaiClient
		}
	}

	// Vendor directory index
	var vendorIndex repositories.VendorSearchIndex
	if typesenseClient != nil {
		adapter := search.NewVendorIndexAdapter(typesenseClient)

		// Ensure schema exists
		if err := adapter.InitSchema(context.Background()); err != nil {
			log.Printf("Warning: Failed to init vendor index schema: %v", err)
		}

		vendorIndex = adapter
	}

	// Build the provider registry: marketplaces plus the vendor directory
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
	if embedder != nil && vendorIndex != nil {
		searchProviders = append(searchProviders, vendordir.NewAdapter(embedder, vendorIndex))
		log.Println("Vendor directory provider registered")
	}

	registry := services.NewProviderRegistry(searchProviders...)
	log.Printf("Provider registry initialized with %d providers", registry.Len())

	// Initialize services

	fanout := services.NewSearchFanoutService(
		registry,
		services.NewResultNormalizer(),
		services.NewResultFilter(),
		services.NewSearchScoringService(),
		cfg.Search,
	)

	analyticsService := services.NewSearchAnalyticsService(analyticsAdapter)

	sourcingService := services.NewSourcingService(
		fanout,
		registry,
		listingAdapter,
		sellerAdapter,
		embedder,
		eventBus,
		analyticsService,
		searchMetrics,
		cfg.Rerank,
	)

	listingService := services.NewListingService(listingAdapter, eventBus)

	// Initialize cache invalidation service
	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Printf("Warning: Failed to start cache invalidation service: %v", err)
		} else {
			log.Println("Cache invalidation service started successfully")
		}
	}

	// Warm the hot read paths periodically
	if cacheProvider != nil {
		warmingService := services.NewCacheWarmingService(
			listingAdapter, // cached adapter, so list reads warm their own keys
			analyticsAdapter,
			cacheProvider,
		)
		go warmingService.StartPeriodicWarming(ctx, 5*time.Minute)
		log.Println("Cache warming service started (refreshes every 5 minutes)")
	}

	// Initialize handlers

	searchHandler := handlers.NewSearchHandler(sourcingService, analyticsService)

	listingsHandler := handlers.NewListingsHandler(listingService)

	providersHandler := handlers.NewProvidersHandler(registry)

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	// Initialize cache middleware
	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
		log.Println("Cache middleware initialized successfully")
	}

	// Set up router

	router := routes.NewRouter(
		searchHandler,
		listingsHandler,
		providersHandler,
		sseHandler,
		cacheMiddleware,
		metrics,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second, // above the stream deadline so SSE fan-outs finish
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	// Stop cache invalidation service
	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	log.Println("Server stopped")
}
