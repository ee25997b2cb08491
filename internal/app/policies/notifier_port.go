package policies

import (
	"context"

	"github.com/shopspring/decimal"
)

// Notifier delivers negotiation updates to parties. Fire-and-forget:
// failures are logged by callers, never retried here.
type Notifier interface {
	NotifyOffer(ctx context.Context, toUser string, negotiationID string, price decimal.Decimal, reasoning string) error
	NotifyAgreementReady(ctx context.Context, user string, negotiationID string) error
	NotifyRejection(ctx context.Context, user string, negotiationID string, reasoning string) error
}
