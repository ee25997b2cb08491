package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"bagsy/internal/domain/negotiation"
)

var (
	ErrAgentDisabled    = errors.New("engine: agent not enabled for this party")
	ErrNoOfferToDecide  = errors.New("engine: context has no offer under evaluation")
	ErrUnknownRole      = errors.New("engine: unknown negotiating role")
	ErrSnapshotRequired = errors.New("engine: market snapshot required")
)

const (
	confidenceThresholdAccept = 0.95
	confidenceMarketAccept    = 0.85
	confidenceGoodDealAccept  = 0.95
	confidenceBudgetAccept    = 0.9
	confidenceFloorReject     = 0.9
	confidenceCeilingReject   = 0.9
	confidenceLimitReject     = 0.85
	confidenceCounter         = 0.75
)

var (
	marketAcceptRatio   = decimal.RequireFromString("0.85")
	goodDealRatio       = decimal.RequireFromString("0.85")
	fairMarketRatio     = decimal.RequireFromString("1.1")
	ceilingRejectFactor = decimal.RequireFromString("1.15")
)

// Engine evaluates a pending offer for one negotiating side. Rule order is
// total and accept checks always run before reject checks, so a good-enough
// deal is never shadowed by a reject rule.
type Engine struct{}

func New() *Engine { return &Engine{} }

// Decide produces the responding side's decision for the offer in ctx.
// It refuses to act for a side without explicit agent opt-in.
func (e *Engine) Decide(ctx Context, role negotiation.Party) (Decision, error) {
	var prefs *negotiation.AgentPreferences
	switch role {
	case negotiation.PartyOwner:
		prefs = ctx.OwnerPrefs
	case negotiation.PartyRenter:
		prefs = ctx.RenterPrefs
	default:
		return Decision{}, ErrUnknownRole
	}
	if prefs == nil || !prefs.Enabled {
		return Decision{}, ErrAgentDisabled
	}
	if !ctx.CurrentOffer.IsPositive() || !ctx.ListingPrice.IsPositive() {
		return Decision{}, ErrNoOfferToDecide
	}
	if err := ctx.Market.Validate(); err != nil {
		return Decision{}, ErrSnapshotRequired
	}

	p := prefs.Normalized()
	if role == negotiation.PartyOwner {
		return e.decideOwner(ctx, p), nil
	}
	return e.decideRenter(ctx, p), nil
}

func (e *Engine) decideOwner(ctx Context, prefs negotiation.AgentPreferences) Decision {
	offer := ctx.CurrentOffer
	offerRatio := offer.Div(ctx.ListingPrice)

	if offerRatio.GreaterThanOrEqual(prefs.AutoAcceptThreshold) {
		return Decision{
			Action:      ActionAccept,
			Reasoning:   fmt.Sprintf("Offer is %s%% of the listing price, at or above the %s%% auto-accept threshold.", percent(offerRatio), percent(prefs.AutoAcceptThreshold)),
			Confidence:  confidenceThresholdAccept,
			AIGenerated: true,
		}
	}
	if offer.GreaterThanOrEqual(ctx.Market.AveragePrice) && offerRatio.GreaterThanOrEqual(marketAcceptRatio) {
		return Decision{
			Action:      ActionAccept,
			Reasoning:   fmt.Sprintf("Offer of %s meets the market average of %s for comparable spaces.", offer.StringFixed(2), ctx.Market.AveragePrice.StringFixed(2)),
			Confidence:  confidenceMarketAccept,
			AIGenerated: true,
		}
	}

	if limited, d := e.roundLimitReached(ctx, prefs); limited {
		return d
	}

	floor := prefs.FloorFor(ctx.ListingPrice)
	if offer.LessThan(floor) {
		return Decision{
			Action:      ActionReject,
			Reasoning:   fmt.Sprintf("Offer of %s is below the minimum acceptable price of %s.", offer.StringFixed(2), floor.StringFixed(2)),
			Confidence:  confidenceFloorReject,
			AIGenerated: true,
		}
	}

	counter := CounterOwner(ctx.ListingPrice, offer, floor, ctx.Market, prefs.Strategy, ctx.Round)
	return Decision{
		Action:       ActionCounter,
		CounterPrice: counter,
		Reasoning:    fmt.Sprintf("Countering at %s based on the listing price, market conditions, and a %s strategy.", counter.StringFixed(2), prefs.Strategy),
		Confidence:   confidenceCounter,
		AIGenerated:  true,
	}
}

func (e *Engine) decideRenter(ctx Context, prefs negotiation.AgentPreferences) Decision {
	offer := ctx.CurrentOffer
	ceiling := prefs.CeilingFor(ctx.ListingPrice)
	marketRatio := offer.Div(ctx.Market.AveragePrice)

	if offer.LessThan(ctx.Market.AveragePrice.Mul(goodDealRatio)) {
		return Decision{
			Action:      ActionAccept,
			Reasoning:   fmt.Sprintf("Asking price of %s is well below the market average of %s; this is a good deal.", offer.StringFixed(2), ctx.Market.AveragePrice.StringFixed(2)),
			Confidence:  confidenceGoodDealAccept,
			AIGenerated: true,
		}
	}
	if offer.LessThanOrEqual(ceiling) && marketRatio.LessThanOrEqual(fairMarketRatio) {
		return Decision{
			Action:      ActionAccept,
			Reasoning:   fmt.Sprintf("Asking price of %s is within budget (max %s) and in line with the market.", offer.StringFixed(2), ceiling.StringFixed(2)),
			Confidence:  confidenceBudgetAccept,
			AIGenerated: true,
		}
	}

	if limited, d := e.roundLimitReached(ctx, prefs); limited {
		return d
	}

	if offer.GreaterThan(ceiling.Mul(ceilingRejectFactor)) {
		return Decision{
			Action:      ActionReject,
			Reasoning:   fmt.Sprintf("Asking price of %s is far above the maximum budget of %s.", offer.StringFixed(2), ceiling.StringFixed(2)),
			Confidence:  confidenceCeilingReject,
			AIGenerated: true,
		}
	}

	counter := CounterRenter(ctx.ListingPrice, offer, ceiling, ctx.Market, prefs.Strategy, ctx.Round)
	return Decision{
		Action:       ActionCounter,
		CounterPrice: counter,
		Reasoning:    fmt.Sprintf("Countering at %s anchored on the market average of %s with a %s strategy.", counter.StringFixed(2), ctx.Market.AveragePrice.StringFixed(2), prefs.Strategy),
		Confidence:   confidenceCounter,
		AIGenerated:  true,
	}
}

// roundLimitReached forces termination once the responding side's round cap
// is hit. Convergence pull alone does not guarantee the chain ends, so the
// cap is enforced here after the accept checks: a good-enough final offer is
// still taken on the last round.
func (e *Engine) roundLimitReached(ctx Context, prefs negotiation.AgentPreferences) (bool, Decision) {
	if ctx.Round < prefs.MaxCounterOffers {
		return false, Decision{}
	}
	return true, Decision{
		Action:      ActionReject,
		Reasoning:   fmt.Sprintf("Negotiation limit reached after %d rounds without agreement.", ctx.Round),
		Confidence:  confidenceLimitReject,
		AIGenerated: true,
	}
}

func percent(ratio decimal.Decimal) string {
	return ratio.Mul(decimal.NewFromInt(100)).Round(1).String()
}
