package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dealscout/sourcing/internal/application/services"
	"github.com/dealscout/sourcing/internal/domain/repositories"
)

// ListingsHandler serves persisted listings and selection updates
type ListingsHandler struct {
	listings *services.ListingService
}

// NewListingsHandler creates a new listings handler
func NewListingsHandler(listings *services.ListingService) *ListingsHandler {
	return &ListingsHandler{listings: listings}
}

// ListByRequest handles GET /api/requests/{id}/listings
func (h *ListingsHandler) ListByRequest(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if requestID == "" {
		respondWithError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	filter := listingFilterFromQuery(r)
	listings, err := h.listings.ListByRequest(r.Context(), requestID, filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"listings":   listings,
		"count":      len(listings),
	})
}

// GetListing handles GET /api/listings/{id}
func (h *ListingsHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("id")
	if listingID == "" {
		respondWithError(w, http.StatusBadRequest, "listing ID is required")
		return
	}

	listing, err := h.listings.GetByID(r.Context(), listingID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if listing == nil {
		respondWithError(w, http.StatusNotFound, "listing not found")
		return
	}

	respondWithJSON(w, http.StatusOK, listing)
}

// selectionRequest is the PATCH /api/listings/{id}/selection body.
type selectionRequest struct {
	Selected *bool `json:"selected"`
}

// UpdateSelection handles PATCH /api/listings/{id}/selection
func (h *ListingsHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("id")
	if listingID == "" {
		respondWithError(w, http.StatusBadRequest, "listing ID is required")
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Selected == nil {
		respondWithError(w, http.StatusBadRequest, "selected is required")
		return
	}

	listing, err := h.listings.SetSelection(r.Context(), listingID, *req.Selected)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, listing)
}

func listingFilterFromQuery(r *http.Request) repositories.ListingFilter {
	query := r.URL.Query()

	filter := repositories.ListingFilter{
		Source:       query.Get("source"),
		SelectedOnly: query.Get("selected_only") == "true",
		Limit:        20,
	}
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			filter.Limit = parsed
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}
	return filter
}
