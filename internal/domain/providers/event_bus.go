package providers

import (
	"context"

	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.InsuranceEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.InsuranceEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelClaimUpdates is the channel for all claim events
	EventChannelClaimUpdates = "claims:updates"

	// EventChannelClaimPrefix is the prefix for claim-specific channels
	EventChannelClaimPrefix = "claims:"

	// EventChannelPlanUpdates carries plan and provider changes
	EventChannelPlanUpdates = "insurance:plans"
)

// GetClaimChannel returns the channel name for a specific claim
func GetClaimChannel(claimID string) string {
	return EventChannelClaimPrefix + claimID
}
