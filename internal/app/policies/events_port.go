package policies

import (
	"context"

	"bagsy/internal/domain/shared/events"
)

// EventPublisher fans domain events out to interested consumers.
// Best-effort like the Notifier: the negotiation flow never blocks on it.
type EventPublisher interface {
	PublishEvents(ctx context.Context, evs []events.DomainEvent) error
}
