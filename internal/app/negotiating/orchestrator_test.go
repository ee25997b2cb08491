package negotiating_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bagsy/internal/app/engine"
	"bagsy/internal/app/negotiating"
	"bagsy/internal/domain/market"
	"bagsy/internal/domain/negotiation"
	"bagsy/internal/infra/storage/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixedProvider struct{ snap market.Snapshot }

func (p fixedProvider) Snapshot(ctx context.Context, q market.Query) market.Snapshot {
	return p.snap
}

type countingEngine struct {
	inner *engine.Engine
	calls int
}

func (c *countingEngine) Decide(ctx engine.Context, role negotiation.Party) (engine.Decision, error) {
	c.calls++
	return c.inner.Decide(ctx, role)
}

type recordingNotifier struct {
	offers     int
	agreements int
	rejections int
	lastReason string
}

func (n *recordingNotifier) NotifyOffer(ctx context.Context, toUser, negotiationID string, price decimal.Decimal, reasoning string) error {
	n.offers++
	return nil
}

func (n *recordingNotifier) NotifyAgreementReady(ctx context.Context, user, negotiationID string) error {
	n.agreements++
	return nil
}

func (n *recordingNotifier) NotifyRejection(ctx context.Context, user, negotiationID, reasoning string) error {
	n.rejections++
	n.lastReason = reasoning
	return nil
}

// syncScheduler runs tasks inline so chained rounds are deterministic.
type syncScheduler struct{}

func (syncScheduler) Schedule(ctx context.Context, name string, delay time.Duration, task func(context.Context)) error {
	task(ctx)
	return nil
}

type testEnv struct {
	Orchestrator *negotiating.Orchestrator
	Negotiations *memory.NegotiationRepository
	Preferences  *memory.PreferencesRepository
	Engine       *countingEngine
	Notifier     *recordingNotifier
	Ctx          context.Context
}

func newTestEnv(t *testing.T, avg string) testEnv {
	t.Helper()
	negotiations := memory.NewNegotiationRepository()
	preferences := memory.NewPreferencesRepository()
	eng := &countingEngine{inner: engine.New()}
	notifier := &recordingNotifier{}
	snap := market.Snapshot{
		AveragePrice:    d(avg),
		MedianPrice:     d(avg),
		PriceRange:      market.PriceRange{Min: d("5"), Max: d("60")},
		CompetitorCount: 6,
		DemandLevel:     market.DemandMedium,
		SeasonalFactor:  decimal.NewFromInt(1),
	}
	orch := &negotiating.Orchestrator{
		Negotiations: negotiations,
		Preferences:  preferences,
		Market:       fixedProvider{snap: snap},
		Engine:       eng,
		Notifier:     notifier,
		Scheduler:    syncScheduler{},
		Now:          func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return testEnv{
		Orchestrator: orch,
		Negotiations: negotiations,
		Preferences:  preferences,
		Engine:       eng,
		Notifier:     notifier,
		Ctx:          context.Background(),
	}
}

func (e testEnv) enableAgent(t *testing.T, userID string, prefs negotiation.AgentPreferences) {
	t.Helper()
	prefs.UserID = userID
	prefs.Enabled = true
	if err := e.Preferences.Save(e.Ctx, &prefs); err != nil {
		t.Fatalf("save preferences: %v", err)
	}
}

func openParams(price, offer string) negotiating.OpenParams {
	return negotiating.OpenParams{
		ListingID:     "lst-1",
		OwnerID:       "owner-1",
		RenterID:      "renter-1",
		ListingPrice:  d(price),
		SpaceCategory: "garage",
		Location:      "Portland, OR",
		InitialOffer:  d(offer),
		Message:       "would this work?",
	}
}

func TestAutoChainConcludesWithAgreement(t *testing.T) {
	env := newTestEnv(t, "18")
	env.enableAgent(t, "owner-1", negotiation.AgentPreferences{Strategy: negotiation.StrategyModerate})
	env.enableAgent(t, "renter-1", negotiation.AgentPreferences{Strategy: negotiation.StrategyModerate})

	n, err := env.Orchestrator.Open(env.Ctx, openParams("20", "16"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	final, err := env.Negotiations.ByID(env.Ctx, n.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != negotiation.StatusAccepted {
		t.Fatalf("want accepted, got %s", final.Status)
	}
	// The moderate owner counters the 16 offer at 17.60 on round 1 and the
	// renter agent takes it as market-fair.
	last := final.LatestOffer()
	if last == nil || !last.Price.Equal(d("17.60")) {
		t.Fatalf("want final price 17.60, got %+v", last)
	}
	if last.Status != negotiation.OfferAccepted {
		t.Fatalf("final offer must be accepted, got %s", last.Status)
	}
	if env.Notifier.agreements != 2 {
		t.Fatalf("both parties must be told the agreement is ready, got %d", env.Notifier.agreements)
	}
	if env.Engine.calls != 2 {
		t.Fatalf("expected 2 engine rounds, got %d", env.Engine.calls)
	}
}

func TestNoAgentNoDecision(t *testing.T) {
	env := newTestEnv(t, "18")

	n, err := env.Orchestrator.Open(env.Ctx, openParams("20", "16"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := env.Orchestrator.TriggerNextRound(env.Ctx, n.ID); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	if env.Engine.calls != 0 {
		t.Fatalf("engine must never run without opt-in, got %d calls", env.Engine.calls)
	}
	reloaded, err := env.Negotiations.ByID(env.Ctx, n.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != negotiation.StatusNegotiating {
		t.Fatalf("negotiation must stay open, got %s", reloaded.Status)
	}
	if active, err := reloaded.ActiveOffer(); err != nil || active == nil {
		t.Fatalf("offer must stay pending for a human to answer: %v", err)
	}
}

func TestStaleTriggerIsNoOp(t *testing.T) {
	env := newTestEnv(t, "18")

	n, err := env.Orchestrator.Open(env.Ctx, openParams("20", "16"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := env.Orchestrator.Accept(env.Ctx, n.ID, "owner-1"); err != nil {
		t.Fatalf("human accept: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := env.Orchestrator.TriggerNextRound(env.Ctx, n.ID); err != nil {
			t.Fatalf("stale trigger %d: %v", i, err)
		}
	}

	if env.Engine.calls != 0 {
		t.Fatalf("stale triggers must not reach the engine, got %d calls", env.Engine.calls)
	}
	reloaded, err := env.Negotiations.ByID(env.Ctx, n.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Offers) != 1 {
		t.Fatalf("stale triggers must not append offers, got %d", len(reloaded.Offers))
	}
}

func TestRoundCapTerminatesAdversarialChain(t *testing.T) {
	env := newTestEnv(t, "20")
	env.enableAgent(t, "owner-1", negotiation.AgentPreferences{
		Strategy:           negotiation.StrategyModerate,
		MinAcceptablePrice: d("21"),
	})
	env.enableAgent(t, "renter-1", negotiation.AgentPreferences{Strategy: negotiation.StrategyModerate})

	n, err := env.Orchestrator.Open(env.Ctx, openParams("30", "22"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	final, err := env.Negotiations.ByID(env.Ctx, n.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != negotiation.StatusRejected {
		t.Fatalf("adversarial chain must terminate via the round cap, got %s", final.Status)
	}
	if len(final.Offers) > 5 {
		t.Fatalf("chain must not outlive the cap, got %d offers", len(final.Offers))
	}
	if env.Notifier.rejections == 0 {
		t.Fatal("the offering party must be told about the rejection")
	}
}

func TestHumanSideIsNotAnsweredAutomatically(t *testing.T) {
	env := newTestEnv(t, "18")
	env.enableAgent(t, "owner-1", negotiation.AgentPreferences{Strategy: negotiation.StrategyModerate})

	n, err := env.Orchestrator.Open(env.Ctx, openParams("20", "16"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	reloaded, err := env.Negotiations.ByID(env.Ctx, n.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	// The owner agent countered once; the renter is human so the counter
	// stays pending.
	if env.Engine.calls != 1 {
		t.Fatalf("only the owner agent should have run, got %d calls", env.Engine.calls)
	}
	active, err := reloaded.ActiveOffer()
	if err != nil {
		t.Fatalf("expected a pending counter: %v", err)
	}
	if active.FromParty != negotiation.PartyOwner {
		t.Fatalf("pending counter must come from the owner, got %s", active.FromParty)
	}
	if reloaded.Status != negotiation.StatusNegotiating {
		t.Fatalf("want negotiating, got %s", reloaded.Status)
	}
}

type failingRepo struct {
	negotiation.Repository
	failSaves bool
}

func (r *failingRepo) Save(ctx context.Context, n *negotiation.Negotiation) error {
	if r.failSaves {
		return errors.New("storage down")
	}
	return r.Repository.Save(ctx, n)
}

func TestDecisionLostOnPersistenceFailure(t *testing.T) {
	env := newTestEnv(t, "18")
	env.enableAgent(t, "owner-1", negotiation.AgentPreferences{Strategy: negotiation.StrategyModerate})
	repo := &failingRepo{Repository: env.Negotiations}
	env.Orchestrator.Negotiations = repo
	env.Orchestrator.Scheduler = nil

	n, err := env.Orchestrator.Open(env.Ctx, openParams("20", "16"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	repo.failSaves = true
	if err := env.Orchestrator.TriggerNextRound(env.Ctx, n.ID); err != nil {
		t.Fatalf("persistence failure must be swallowed, got %v", err)
	}
	repo.failSaves = false

	reloaded, err := env.Negotiations.ByID(env.Ctx, n.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	// The computed counter was dropped; the original offer is still pending
	// and a later trigger can redo the round from persisted state.
	if len(reloaded.Offers) != 1 {
		t.Fatalf("lost decision must not leave partial offers, got %d", len(reloaded.Offers))
	}
	if err := env.Orchestrator.TriggerNextRound(env.Ctx, n.ID); err != nil {
		t.Fatalf("retriggered round: %v", err)
	}
	reloaded, err = env.Negotiations.ByID(env.Ctx, n.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Offers) != 2 {
		t.Fatalf("retriggered round must re-derive the counter, got %d offers", len(reloaded.Offers))
	}
}
