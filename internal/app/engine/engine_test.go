package engine

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"bagsy/internal/domain/market"
	"bagsy/internal/domain/negotiation"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshot(avg string) market.Snapshot {
	return market.Snapshot{
		AveragePrice:    d(avg),
		MedianPrice:     d(avg),
		PriceRange:      market.PriceRange{Min: d("5"), Max: d("50")},
		CompetitorCount: 8,
		DemandLevel:     market.DemandMedium,
		SeasonalFactor:  decimal.NewFromInt(1),
	}
}

func ownerContext(listing, offer, avg string, prefs *negotiation.AgentPreferences, round int) Context {
	return Context{
		NegotiationID: "neg-1",
		ListingPrice:  d(listing),
		CurrentOffer:  d(offer),
		OwnerPrefs:    prefs,
		Round:         round,
		Market:        snapshot(avg),
	}
}

func enabledPrefs() *negotiation.AgentPreferences {
	return &negotiation.AgentPreferences{UserID: "owner-1", Enabled: true}
}

func TestOwnerAcceptsAtAutoAcceptThreshold(t *testing.T) {
	eng := New()

	// $19.50 on a $20 listing is ratio 0.975.
	dec, err := eng.Decide(ownerContext("20", "19.50", "18", enabledPrefs(), 1), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionAccept {
		t.Fatalf("want accept, got %s (%s)", dec.Action, dec.Reasoning)
	}
	if dec.Confidence != 0.95 {
		t.Fatalf("want confidence 0.95, got %v", dec.Confidence)
	}
	if !dec.AIGenerated {
		t.Fatal("decision must be flagged as generated")
	}
}

func TestOwnerThresholdBoundaryIsInclusive(t *testing.T) {
	eng := New()

	// Exactly 0.95 x 20 = 19.00 accepts.
	dec, err := eng.Decide(ownerContext("20", "19.00", "30", enabledPrefs(), 1), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionAccept {
		t.Fatalf("offer at threshold must accept, got %s", dec.Action)
	}

	// One cent below must not fire the threshold rule. Market average is set
	// high so the market accept rule cannot fire either.
	dec, err = eng.Decide(ownerContext("20", "18.99", "30", enabledPrefs(), 1), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action == ActionAccept {
		t.Fatalf("one cent below threshold must not accept: %s", dec.Reasoning)
	}
}

func TestOwnerAcceptsMarketMeetingOffer(t *testing.T) {
	eng := New()

	// 18.50 on a $20 listing: ratio 0.925 misses the threshold but meets the
	// $18 market average with ratio >= 0.85.
	dec, err := eng.Decide(ownerContext("20", "18.50", "18", enabledPrefs(), 1), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionAccept {
		t.Fatalf("want market accept, got %s (%s)", dec.Action, dec.Reasoning)
	}
	if dec.Confidence != 0.85 {
		t.Fatalf("want confidence 0.85, got %v", dec.Confidence)
	}
}

func TestOwnerRejectsBelowFloor(t *testing.T) {
	eng := New()

	// Default floor on a $20 listing is 0.7 x 20 = $14.
	dec, err := eng.Decide(ownerContext("20", "13.99", "18", enabledPrefs(), 1), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionReject {
		t.Fatalf("want reject, got %s (%s)", dec.Action, dec.Reasoning)
	}
	if dec.Confidence != 0.9 {
		t.Fatalf("want confidence 0.9, got %v", dec.Confidence)
	}
}

func TestOwnerFloorBoundaryIsInclusive(t *testing.T) {
	eng := New()
	prefs := enabledPrefs()
	prefs.MinAcceptablePrice = d("15")

	// Exactly at the floor counters rather than rejects.
	dec, err := eng.Decide(ownerContext("20", "15.00", "18", prefs, 1), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionCounter {
		t.Fatalf("offer at floor must not reject, got %s", dec.Action)
	}

	dec, err = eng.Decide(ownerContext("20", "14.99", "18", prefs, 1), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionReject {
		t.Fatalf("one cent below floor must reject, got %s", dec.Action)
	}
}

func TestOwnerCounterScenario(t *testing.T) {
	eng := New()

	// Listing $20/hr, market average $18, renter offers $17: a moderate owner
	// counters near $18.50 on round 1 and trends toward the offer by round 4.
	dec, err := eng.Decide(ownerContext("20", "17", "18", enabledPrefs(), 1), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionCounter {
		t.Fatalf("want counter, got %s (%s)", dec.Action, dec.Reasoning)
	}
	if dec.Confidence != 0.75 {
		t.Fatalf("want confidence 0.75, got %v", dec.Confidence)
	}
	if !dec.CounterPrice.Equal(d("18.20")) {
		t.Fatalf("round 1 counter: want 18.20, got %s", dec.CounterPrice)
	}

	later, err := eng.Decide(ownerContext("20", "17", "18", enabledPrefs(), 4), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !later.CounterPrice.LessThan(dec.CounterPrice) {
		t.Fatalf("round 4 counter %s must be closer to the offer than round 1 counter %s", later.CounterPrice, dec.CounterPrice)
	}
}

func TestRenterRules(t *testing.T) {
	eng := New()
	prefs := &negotiation.AgentPreferences{UserID: "renter-1", Enabled: true}

	cases := []struct {
		name       string
		listing    string
		offer      string
		avg        string
		ceiling    string
		want       Action
		confidence float64
	}{
		// 14 < 0.85 x 18 = 15.30: clearly below market.
		{"good deal accepts", "20", "14", "18", "", ActionAccept, 0.95},
		// Within the default ceiling (22) and marketRatio 19/18 = 1.06 <= 1.1.
		{"fair ask within budget accepts", "20", "19", "18", "", ActionAccept, 0.9},
		// 30 > 1.15 x 22 = 25.30.
		{"far above budget rejects", "20", "30", "18", "", ActionReject, 0.9},
		// Above budget but not egregiously: counter.
		{"negotiable ask counters", "20", "24", "18", "", ActionCounter, 0.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.ceiling != "" {
				prefs.MaxAcceptablePrice = d(tc.ceiling)
			} else {
				prefs.MaxAcceptablePrice = decimal.Zero
			}
			dec, err := eng.Decide(Context{
				NegotiationID: "neg-1",
				ListingPrice:  d(tc.listing),
				CurrentOffer:  d(tc.offer),
				RenterPrefs:   prefs,
				Round:         1,
				Market:        snapshot(tc.avg),
			}, negotiation.PartyRenter)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if dec.Action != tc.want {
				t.Fatalf("want %s, got %s (%s)", tc.want, dec.Action, dec.Reasoning)
			}
			if dec.Confidence != tc.confidence {
				t.Fatalf("want confidence %v, got %v", tc.confidence, dec.Confidence)
			}
		})
	}
}

func TestRoundLimitForcesTermination(t *testing.T) {
	eng := New()

	dec, err := eng.Decide(ownerContext("20", "16", "18", enabledPrefs(), 5), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionReject {
		t.Fatalf("round cap must reject, got %s (%s)", dec.Action, dec.Reasoning)
	}
	if !strings.Contains(dec.Reasoning, "limit reached") {
		t.Fatalf("reasoning must mention the limit: %q", dec.Reasoning)
	}
}

func TestRoundLimitDoesNotShadowAccept(t *testing.T) {
	eng := New()

	// A good-enough final offer is still taken on the last round.
	dec, err := eng.Decide(ownerContext("20", "19.50", "18", enabledPrefs(), 5), negotiation.PartyOwner)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if dec.Action != ActionAccept {
		t.Fatalf("accept checks run before the cap, got %s", dec.Action)
	}
}

func TestDecideRefusesDisabledAgent(t *testing.T) {
	eng := New()

	disabled := &negotiation.AgentPreferences{UserID: "owner-1", Enabled: false}
	if _, err := eng.Decide(ownerContext("20", "17", "18", disabled, 1), negotiation.PartyOwner); err != ErrAgentDisabled {
		t.Fatalf("want ErrAgentDisabled, got %v", err)
	}
	if _, err := eng.Decide(ownerContext("20", "17", "18", nil, 1), negotiation.PartyOwner); err != ErrAgentDisabled {
		t.Fatalf("nil preferences: want ErrAgentDisabled, got %v", err)
	}
}

func TestDecideRejectsInvalidSnapshot(t *testing.T) {
	eng := New()

	ctx := ownerContext("20", "17", "18", enabledPrefs(), 1)
	ctx.Market.DemandLevel = "volcanic"
	if _, err := eng.Decide(ctx, negotiation.PartyOwner); err != ErrSnapshotRequired {
		t.Fatalf("want ErrSnapshotRequired, got %v", err)
	}
}
