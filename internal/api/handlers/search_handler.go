package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dealscout/sourcing/internal/application/services"
	"github.com/dealscout/sourcing/internal/domain/entities"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// SearchOrchestrator runs the search pipeline for the API layer
type SearchOrchestrator interface {
	SearchAndPersist(ctx context.Context, intent *entities.SearchIntent, opts services.SourcingOptions) (*services.SourcingResult, error)
	Stream(ctx context.Context, intent *entities.SearchIntent, opts services.SourcingOptions) (<-chan entities.StreamBatch, error)
}

// ZeroResultSource reports recent searches that produced nothing
type ZeroResultSource interface {
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}

// SearchHandler exposes the sourcing pipeline over HTTP. The intent arrives
// already structured; this layer only decodes, validates presence, and maps
// errors onto status codes.
type SearchHandler struct {
	sourcing  SearchOrchestrator
	analytics ZeroResultSource
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(sourcing SearchOrchestrator, analytics ZeroResultSource) *SearchHandler {
	return &SearchHandler{
		sourcing:  sourcing,
		analytics: analytics,
	}
}

// searchRequest is the POST /api/search body.
type searchRequest struct {
	Intent     *entities.SearchIntent `json:"intent"`
	RequestID  string                 `json:"request_id,omitempty"`
	Providers  []string               `json:"providers,omitempty"`
	MaxResults int                    `json:"max_results,omitempty"`
	RerankTopK int                    `json:"rerank_top_k,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
}

// Search handles POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Intent == nil {
		respondWithError(w, http.StatusBadRequest, "intent is required")
		return
	}
	if req.Intent.RawInput == "" && req.Intent.ProductCategory == "" && len(req.Intent.Keywords) == 0 {
		respondWithError(w, http.StatusBadRequest, "intent must carry raw input, a category, or keywords")
		return
	}
	req.Intent.Normalize()

	result, err := h.sourcing.SearchAndPersist(r.Context(), req.Intent, services.SourcingOptions{
		RequestID:  req.RequestID,
		Providers:  req.Providers,
		MaxResults: req.MaxResults,
		RerankTopK: req.RerankTopK,
		SessionID:  req.SessionID,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// SearchStream handles GET /api/search/stream. Provider batches are emitted
// as SSE events in completion order; the stream ends with a "complete" event
// once every provider has reported.
func (h *SearchHandler) SearchStream(w http.ResponseWriter, r *http.Request) {
	intent, err := intentFromQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	opts := services.SourcingOptions{
		RequestID: r.URL.Query().Get("request_id"),
	}
	if raw := r.URL.Query().Get("providers"); raw != "" {
		opts.Providers = strings.Split(raw, ",")
	}
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			opts.MaxResults = parsed
		}
	}

	batches, err := h.sourcing.Stream(r.Context(), intent, opts)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sendEvent(w, "connected", map[string]interface{}{
		"query":     intent.QueryString(),
		"timestamp": time.Now(),
	})
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected from search stream")
			return
		case <-heartbeat.C:
			sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": time.Now()})
			flusher.Flush()
		case batch, open := <-batches:
			if !open {
				sendEvent(w, "complete", map[string]interface{}{"timestamp": time.Now()})
				flusher.Flush()
				return
			}
			sendEvent(w, "provider_batch", batch)
			flusher.Flush()
		}
	}
}

// GetZeroResultQueries handles GET /api/analytics/zero-result-queries
func (h *SearchHandler) GetZeroResultQueries(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		respondWithError(w, http.StatusNotFound, "analytics not enabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	queries, err := h.analytics.GetZeroResultQueries(r.Context(), limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to fetch zero-result queries")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"queries": queries,
		"count":   len(queries),
	})
}

// intentFromQuery builds the search intent for the streaming endpoint. A
// complete intent can ride in the "intent" parameter as JSON; otherwise the
// flat parameters cover the common fields.
func intentFromQuery(r *http.Request) (*entities.SearchIntent, error) {
	query := r.URL.Query()

	if raw := query.Get("intent"); raw != "" {
		var intent entities.SearchIntent
		if err := json.Unmarshal([]byte(raw), &intent); err != nil {
			return nil, fmt.Errorf("invalid intent parameter")
		}
		intent.Normalize()
		return &intent, nil
	}

	intent := &entities.SearchIntent{
		RawInput:        query.Get("q"),
		ProductCategory: query.Get("category"),
		Brand:           query.Get("brand"),
	}
	if raw := query.Get("keywords"); raw != "" {
		intent.Keywords = strings.Split(raw, ",")
	}
	if raw := query.Get("min_price"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			intent.MinPrice = &parsed
		}
	}
	if raw := query.Get("max_price"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			intent.MaxPrice = &parsed
		}
	}
	if intent.RawInput == "" && intent.ProductCategory == "" && len(intent.Keywords) == 0 {
		return nil, fmt.Errorf("q, category, keywords, or an intent parameter is required")
	}
	intent.Normalize()
	return intent, nil
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps a typed application error onto its status code.
// Untyped errors stay opaque to the client.
func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeRateLimited:
		respondWithError(w, http.StatusTooManyRequests, appErr.Message)
	case apperrors.ErrorTypeQuotaExhausted:
		respondWithError(w, http.StatusPaymentRequired, appErr.Message)
	case apperrors.ErrorTypeTimeout:
		respondWithError(w, http.StatusGatewayTimeout, appErr.Message)
	default:
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendEvent writes one SSE frame
func sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal event data: %v", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}
