package routes

import (
	"net/http"

	"github.com/dealscout/sourcing/internal/api/handlers"
	"github.com/dealscout/sourcing/internal/api/middleware"
	"github.com/dealscout/sourcing/internal/infrastructure/observability"
)

// Router holds all route handlers

type Router struct {
	mux *http.ServeMux

	searchHandler *handlers.SearchHandler

	listingsHandler *handlers.ListingsHandler

	providersHandler *handlers.ProvidersHandler

	sseHandler *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router

func NewRouter(

	searchHandler *handlers.SearchHandler,

	listingsHandler *handlers.ListingsHandler,

	providersHandler *handlers.ProvidersHandler,

	sseHandler *handlers.SSEHandler,

	cacheMiddleware *middleware.CacheMiddleware,

	metrics *observability.Metrics,

) *Router {

	return &Router{

		mux: http.NewServeMux(),

		searchHandler: searchHandler,

		listingsHandler: listingsHandler,

		providersHandler: providersHandler,

		sseHandler: sseHandler,

		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}

}

// SetupRoutes configures all application routes

func (r *Router) SetupRoutes() http.Handler {

	// Health check endpoint

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {

		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}

	})

	// Search endpoints

	r.mux.HandleFunc("POST /api/search", r.searchHandler.Search)

	r.mux.HandleFunc("GET /api/search/stream", r.searchHandler.SearchStream)

	// Listing endpoints

	r.mux.HandleFunc("GET /api/requests/{id}/listings", r.listingsHandler.ListByRequest)

	r.mux.HandleFunc("GET /api/listings/{id}", r.listingsHandler.GetListing)

	r.mux.HandleFunc("PATCH /api/listings/{id}/selection", r.listingsHandler.UpdateSelection)

	// Provider registry endpoint

	r.mux.HandleFunc("GET /api/providers", r.providersHandler.List)

	// Event stream endpoints
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/requests/{id}", r.sseHandler.StreamRequestUpdates)
		r.mux.HandleFunc("GET /api/stream/search", r.sseHandler.StreamAllUpdates)
	}

	// Analytics endpoints
	r.mux.HandleFunc("GET /api/analytics/zero-result-queries", r.searchHandler.GetZeroResultQueries)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so cached responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	// Apply cache middleware if available
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}
