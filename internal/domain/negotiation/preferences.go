package negotiation

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrPreferencesNotFound = errors.New("negotiation: agent preferences not found")

type Strategy string

const (
	StrategyAggressive   Strategy = "aggressive"
	StrategyModerate     Strategy = "moderate"
	StrategyConservative Strategy = "conservative"
)

// Valid reports whether the strategy is one of the known profiles.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyAggressive, StrategyModerate, StrategyConservative:
		return true
	}
	return false
}

// AgentPreferences is a party's opt-in configuration for unattended
// negotiation. Enabled defaults to false: the engine must never respond on
// behalf of a party that has not explicitly opted in.
type AgentPreferences struct {
	UserID              string
	Enabled             bool
	MinAcceptablePrice  decimal.Decimal // owner-side floor; zero means "use default"
	MaxAcceptablePrice  decimal.Decimal // renter-side ceiling; zero means "use default"
	AutoAcceptThreshold decimal.Decimal
	Strategy            Strategy
	MaxCounterOffers    int
}

const defaultMaxCounterOffers = 5

var (
	defaultAutoAcceptThreshold = decimal.RequireFromString("0.95")
	defaultFloorFactor         = decimal.RequireFromString("0.7")
	defaultCeilingFactor       = decimal.RequireFromString("1.1")
)

// Normalized fills unset fields with the documented defaults.
func (p AgentPreferences) Normalized() AgentPreferences {
	if p.AutoAcceptThreshold.IsZero() {
		p.AutoAcceptThreshold = defaultAutoAcceptThreshold
	}
	if !p.Strategy.Valid() {
		p.Strategy = StrategyModerate
	}
	if p.MaxCounterOffers <= 0 {
		p.MaxCounterOffers = defaultMaxCounterOffers
	}
	return p
}

// FloorFor resolves the owner's minimum acceptable price, defaulting to
// 0.7x the listing price when not configured.
func (p AgentPreferences) FloorFor(listingPrice decimal.Decimal) decimal.Decimal {
	if p.MinAcceptablePrice.IsPositive() {
		return p.MinAcceptablePrice
	}
	return listingPrice.Mul(defaultFloorFactor)
}

// CeilingFor resolves the renter's maximum acceptable price, defaulting to
// 1.1x the listing price when not configured.
func (p AgentPreferences) CeilingFor(listingPrice decimal.Decimal) decimal.Decimal {
	if p.MaxAcceptablePrice.IsPositive() {
		return p.MaxAcceptablePrice
	}
	return listingPrice.Mul(defaultCeilingFactor)
}

type PreferencesRepository interface {
	ByUser(ctx context.Context, userID string) (*AgentPreferences, error)
	Save(ctx context.Context, prefs *AgentPreferences) error
}
