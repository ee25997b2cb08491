package engine

import (
	"github.com/shopspring/decimal"

	"bagsy/internal/domain/market"
	"bagsy/internal/domain/negotiation"
)

// Counter-offer math. Pure and deterministic: every price here is a function
// of its inputs, which keeps the convergence property testable.

var (
	one  = decimal.NewFromInt(1)
	five = decimal.NewFromInt(5)

	ownerWeightAggressive   = decimal.RequireFromString("0.7")
	ownerWeightModerate     = decimal.RequireFromString("0.5")
	ownerWeightConservative = decimal.RequireFromString("0.4")

	demandBoost    = decimal.RequireFromString("1.05")
	demandDiscount = decimal.RequireFromString("0.95")

	ownerPullCap  = decimal.RequireFromString("0.3")
	renterPullCap = decimal.RequireFromString("0.4")

	renterBaseAggressive = decimal.RequireFromString("0.85")
	renterBaseModerate   = decimal.RequireFromString("0.95")

	two = decimal.NewFromInt(2)
)

// CounterOwner proposes the owner's counter to a renter offer: a
// strategy-weighted blend of the listing price and the offer, nudged by
// demand, pulled toward the offer as rounds accumulate, floored and rounded
// to currency granularity.
func CounterOwner(listingPrice, currentOffer, floor decimal.Decimal, snap market.Snapshot, strategy negotiation.Strategy, round int) decimal.Decimal {
	weight := ownerWeightModerate
	switch strategy {
	case negotiation.StrategyAggressive:
		weight = ownerWeightAggressive
	case negotiation.StrategyConservative:
		weight = ownerWeightConservative
	}
	price := listingPrice.Mul(weight).Add(currentOffer.Mul(one.Sub(weight)))

	switch snap.DemandLevel {
	case market.DemandHigh:
		price = price.Mul(demandBoost)
	case market.DemandLow:
		price = price.Mul(demandDiscount)
	}

	price = pullToward(price, currentOffer, round, ownerPullCap)

	if price.LessThan(floor) {
		price = floor
	}
	return price.Round(2)
}

// CounterRenter proposes the renter's counter to an owner offer, anchored on
// the market average rather than the listing price, with a faster pull toward
// the owner's offer than the owner side uses.
func CounterRenter(listingPrice, ownerOffer, ceiling decimal.Decimal, snap market.Snapshot, strategy negotiation.Strategy, round int) decimal.Decimal {
	var price decimal.Decimal
	switch strategy {
	case negotiation.StrategyAggressive:
		price = snap.AveragePrice.Mul(renterBaseAggressive)
	case negotiation.StrategyConservative:
		price = ownerOffer.Add(snap.AveragePrice).Div(two)
	default:
		price = snap.AveragePrice.Mul(renterBaseModerate)
	}

	price = pullToward(price, ownerOffer, round, renterPullCap)

	if price.GreaterThan(ceiling) {
		price = ceiling
	}
	return price.Round(2)
}

// pullToward moves price a bounded fraction of the way toward target. The
// fraction grows with the round number, which is what guarantees offers
// narrow instead of oscillating.
func pullToward(price, target decimal.Decimal, round int, limit decimal.Decimal) decimal.Decimal {
	progress := decimal.NewFromInt(int64(round)).Div(five)
	if progress.GreaterThan(limit) {
		progress = limit
	}
	return price.Add(target.Sub(price).Mul(progress))
}
