package providers

import (
	"context"

	"github.com/dealscout/sourcing/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.SourcingEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.SourcingEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelSearchUpdates is the channel for all search lifecycle events
	EventChannelSearchUpdates = "search:updates"

	// EventChannelRequestPrefix is the prefix for request-specific channels
	EventChannelRequestPrefix = "search:request:"
)

// GetRequestChannel returns the channel name for a specific search request
func GetRequestChannel(requestID string) string {
	return EventChannelRequestPrefix + requestID
}
