package engine

import (
	"github.com/shopspring/decimal"

	"bagsy/internal/domain/market"
	"bagsy/internal/domain/negotiation"
)

// Context is everything the engine reasons over for one round. Preferences
// are nil for a human-controlled side; the engine refuses to decide for it.
type Context struct {
	NegotiationID negotiation.NegotiationID
	ListingPrice  decimal.Decimal
	CurrentOffer  decimal.Decimal
	OwnerPrefs    *negotiation.AgentPreferences
	RenterPrefs   *negotiation.AgentPreferences
	History       []negotiation.Offer // most-recent-first
	Round         int
	Market        market.Snapshot
}

type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionCounter Action = "counter"
)

// Decision is the engine's output. It is never persisted as its own record;
// the orchestrator translates it into offer mutations and notifications.
type Decision struct {
	Action       Action
	CounterPrice decimal.Decimal // set iff Action == ActionCounter
	Reasoning    string
	Confidence   float64
	AIGenerated  bool
}
