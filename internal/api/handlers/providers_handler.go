package handlers

import (
	"net/http"

	"github.com/dealscout/sourcing/internal/application/services"
)

// ProvidersHandler reports which upstream sources are registered
type ProvidersHandler struct {
	registry *services.ProviderRegistry
}

// NewProvidersHandler creates a new providers handler
func NewProvidersHandler(registry *services.ProviderRegistry) *ProvidersHandler {
	return &ProvidersHandler{registry: registry}
}

type providerInfo struct {
	Name         string `json:"name"`
	PricedAlways bool   `json:"priced_always"`
}

// List handles GET /api/providers
func (h *ProvidersHandler) List(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	infos := make([]providerInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, providerInfo{
			Name:         name,
			PricedAlways: h.registry.PricedAlways(name),
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"providers": infos,
		"count":     len(infos),
	})
}
