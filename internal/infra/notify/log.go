package notify

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"bagsy/internal/app/policies"
	"bagsy/internal/domain/shared/events"
)

// LogDispatcher is the notifier used when no broker is configured. Every
// notification lands in the log so operators can still follow negotiations.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) NotifyOffer(ctx context.Context, toUser string, negotiationID string, price decimal.Decimal, reasoning string) error {
	d.log("notify offer", "user", toUser, "negotiation_id", negotiationID, "price", price.StringFixed(2), "reasoning", reasoning)
	return nil
}

func (d LogDispatcher) NotifyAgreementReady(ctx context.Context, user string, negotiationID string) error {
	d.log("notify agreement ready", "user", user, "negotiation_id", negotiationID)
	return nil
}

func (d LogDispatcher) NotifyRejection(ctx context.Context, user string, negotiationID string, reasoning string) error {
	d.log("notify rejection", "user", user, "negotiation_id", negotiationID, "reasoning", reasoning)
	return nil
}

func (d LogDispatcher) PublishEvents(ctx context.Context, evs []events.DomainEvent) error {
	for _, ev := range evs {
		d.log("domain event", "name", ev.EventName(), "aggregate", ev.AggregateID())
	}
	return nil
}

func (d LogDispatcher) log(msg string, args ...any) {
	if d.Logger == nil {
		return
	}
	d.Logger.Info(msg, args...)
}

var (
	_ policies.Notifier       = (LogDispatcher{})
	_ policies.EventPublisher = (LogDispatcher{})
)
