package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// SourcingEventType represents the type of search lifecycle event
type SourcingEventType string

const (
	SourcingEventTypeSearchStarted     SourcingEventType = "search.started"
	SourcingEventTypeProviderCompleted SourcingEventType = "search.provider_completed"
	SourcingEventTypeSearchCompleted   SourcingEventType = "search.completed"
	SourcingEventTypeListingSelected   SourcingEventType = "listing.selected"
)

// SourcingEvent represents a real-time update event for a search request.
// Events are published to the event bus as a search fans out, so stream
// consumers can render provider results as they arrive.
type SourcingEvent struct {
	ID        string            `json:"id"`
	RequestID string            `json:"request_id"`
	EventType SourcingEventType `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Provider  string            `json:"provider,omitempty"`
	Payload   map[string]any    `json:"payload,omitempty"`
}

// NewSourcingEvent creates a new sourcing event
func NewSourcingEvent(requestID string, eventType SourcingEventType, provider string, payload map[string]any) *SourcingEvent {
	return &SourcingEvent{
		ID:        generateEventID(),
		RequestID: requestID,
		EventType: eventType,
		Timestamp: time.Now(),
		Provider:  provider,
		Payload:   payload,
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
