package market

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidSnapshot = errors.New("market: snapshot failed validation")

type DemandLevel string

const (
	DemandLow    DemandLevel = "low"
	DemandMedium DemandLevel = "medium"
	DemandHigh   DemandLevel = "high"
)

func (d DemandLevel) Valid() bool {
	switch d {
	case DemandLow, DemandMedium, DemandHigh:
		return true
	}
	return false
}

type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Snapshot is aggregated comparable-pricing data for one space category and
// location, derived fresh per negotiation round and never cached.
type Snapshot struct {
	AveragePrice    decimal.Decimal
	MedianPrice     decimal.Decimal
	PriceRange      PriceRange
	CompetitorCount int
	DemandLevel     DemandLevel
	SeasonalFactor  decimal.Decimal
	Synthetic       bool
}

// Validate rejects snapshots that would poison the pricing math.
func (s Snapshot) Validate() error {
	if !s.AveragePrice.IsPositive() {
		return ErrInvalidSnapshot
	}
	if !s.DemandLevel.Valid() {
		return ErrInvalidSnapshot
	}
	if s.PriceRange.Min.IsNegative() || s.PriceRange.Max.LessThan(s.PriceRange.Min) {
		return ErrInvalidSnapshot
	}
	return nil
}

// Query describes what comparable data is being asked for.
type Query struct {
	SpaceCategory string
	Location      string
	ListingPrice  decimal.Decimal
}

// Provider resolves a snapshot for a query. Implementations must degrade to a
// synthetic snapshot on failure rather than returning an error: the decision
// engine always needs a snapshot to run.
type Provider interface {
	Snapshot(ctx context.Context, q Query) Snapshot
}

var (
	syntheticAverageFactor = decimal.RequireFromString("0.95")
	syntheticMedianFactor  = decimal.RequireFromString("0.93")
	syntheticRangeLow      = decimal.RequireFromString("0.75")
	syntheticRangeHigh     = decimal.RequireFromString("1.25")
)

// SyntheticSnapshot derives a conservative snapshot from the listing's own
// price, used whenever real comparable data is unavailable.
func SyntheticSnapshot(listingPrice decimal.Decimal) Snapshot {
	return Snapshot{
		AveragePrice:    listingPrice.Mul(syntheticAverageFactor).Round(2),
		MedianPrice:     listingPrice.Mul(syntheticMedianFactor).Round(2),
		PriceRange:      PriceRange{Min: listingPrice.Mul(syntheticRangeLow).Round(2), Max: listingPrice.Mul(syntheticRangeHigh).Round(2)},
		CompetitorCount: 0,
		DemandLevel:     DemandMedium,
		SeasonalFactor:  decimal.NewFromInt(1),
		Synthetic:       true,
	}
}
