package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/providers"
)

// SSEHandler handles Server-Sent Events for real-time search updates
type SSEHandler struct {
	eventBus providers.EventBus
	clients  map[string]map[chan *entities.SourcingEvent]bool // channel -> clients
	mu       sync.RWMutex
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		clients:  make(map[string]map[chan *entities.SourcingEvent]bool),
	}
}

// StreamRequestUpdates handles SSE connections for request-specific updates
// GET /api/stream/requests/{id}
func (h *SSEHandler) StreamRequestUpdates(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if requestID == "" {
		respondWithError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Create client channel
	clientChan := make(chan *entities.SourcingEvent, 10)
	channel := providers.GetRequestChannel(requestID)

	// Register client
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	// Subscribe to events
	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Printf("Failed to subscribe to channel %s: %v", channel, err)
		return
	}

	// Send initial connection event
	sendEvent(w, "connected", map[string]interface{}{
		"request_id": requestID,
		"timestamp":  time.Now(),
	})

	// Flush to send the initial event
	flusher.Flush()

	// Start forwarding events
	go h.forwardEvents(r.Context(), eventChan, clientChan, nil)

	// Keep connection alive and send events
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected from request stream: %s", requestID)
			return
		case <-ticker.C:
			// Send heartbeat
			sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			// Send search update
			sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// StreamAllUpdates handles SSE connections for the global search lifecycle
// feed, optionally narrowed to specific event types
// GET /api/stream/search?types=search.completed,listing.selected
func (h *SSEHandler) StreamAllUpdates(w http.ResponseWriter, r *http.Request) {
	var types map[entities.SourcingEventType]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		types = make(map[entities.SourcingEventType]bool)
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types[entities.SourcingEventType(t)] = true
			}
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Create client channel
	clientChan := make(chan *entities.SourcingEvent, 50)

	// Subscribe to global search updates
	channel := providers.EventChannelSearchUpdates
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Printf("Failed to subscribe to channel %s: %v", channel, err)
		return
	}

	// Send initial connection event
	sendEvent(w, "connected", map[string]interface{}{
		"types":     r.URL.Query().Get("types"),
		"timestamp": time.Now(),
	})

	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan, types)

	// Keep connection alive and send events
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected from global search stream")
			return
		case <-ticker.C:
			// Send heartbeat
			sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			// Send search update
			sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// forwardEvents forwards events from the event bus to a client channel. A
// non-nil types set drops events of any other type.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.SourcingEvent, clientChan chan<- *entities.SourcingEvent, types map[entities.SourcingEventType]bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if types != nil && !types[event.EventType] {
				continue
			}
			select {
			case clientChan <- event:
			default:
				// Client channel full, skip event
			}
		}
	}
}

// registerClient registers a client for a channel
func (h *SSEHandler) registerClient(channel string, clientChan chan *entities.SourcingEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.SourcingEvent]bool)
	}
	h.clients[channel][clientChan] = true
	log.Printf("Client registered for channel: %s (total: %d)", channel, len(h.clients[channel]))
}

// unregisterClient unregisters a client from a channel
func (h *SSEHandler) unregisterClient(channel string, clientChan chan *entities.SourcingEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		log.Printf("Client unregistered from channel: %s (remaining: %d)", channel, len(clients))

		// Clean up empty channel
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

// GetClientCount returns the number of connected clients for debugging
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
