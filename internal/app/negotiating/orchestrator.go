package negotiating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"bagsy/internal/app/engine"
	"bagsy/internal/app/policies"
	"bagsy/internal/app/schedule"
	"bagsy/internal/domain/market"
	"bagsy/internal/domain/negotiation"
)

var (
	ErrOrchestratorMisconfigured = errors.New("negotiating: orchestrator missing required collaborators")
	ErrNegotiationClosed         = errors.New("negotiating: negotiation already concluded")
)

// DecisionEngine is the evaluation contract the orchestrator drives.
type DecisionEngine interface {
	Decide(ctx engine.Context, role negotiation.Party) (engine.Decision, error)
}

// Orchestrator owns the negotiation state machine: it applies inbound human
// moves, runs agent rounds, executes decisions, and chains further rounds
// when both sides negotiate unattended.
type Orchestrator struct {
	Negotiations negotiation.Repository
	Preferences  negotiation.PreferencesRepository
	Market       market.Provider
	Engine       DecisionEngine
	Notifier     policies.Notifier
	Events       policies.EventPublisher
	Scheduler    schedule.Scheduler
	Logger       *slog.Logger
	RoundDelay   time.Duration

	// Now and ID generators are injectable for tests.
	Now              func() time.Time
	NewOfferID       func() negotiation.OfferID
	NewNegotiationID func() negotiation.NegotiationID
}

type OpenParams struct {
	ListingID     string
	OwnerID       string
	RenterID      string
	ListingPrice  decimal.Decimal
	SpaceCategory string
	Location      string
	InitialOffer  decimal.Decimal
	Message       string
}

// Open starts a negotiation with the renter's opening offer and, when the
// owner negotiates unattended, schedules the first agent round.
func (o *Orchestrator) Open(ctx context.Context, params OpenParams) (*negotiation.Negotiation, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	n, err := negotiation.Open(negotiation.OpenParams{
		ID:            o.newNegotiationID(),
		ListingID:     params.ListingID,
		OwnerID:       params.OwnerID,
		RenterID:      params.RenterID,
		ListingPrice:  params.ListingPrice,
		SpaceCategory: params.SpaceCategory,
		Location:      params.Location,
		CreatedAt:     o.now(),
	})
	if err != nil {
		return nil, err
	}
	offer, err := n.SubmitOffer(negotiation.SubmitOfferParams{
		ID:        o.newOfferID(),
		Price:     params.InitialOffer,
		FromParty: negotiation.PartyRenter,
		Message:   params.Message,
		Now:       o.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := o.Negotiations.Save(ctx, n); err != nil {
		return nil, err
	}
	o.publishEvents(ctx, n)
	o.notifyOffer(ctx, n, offer)
	o.maybeScheduleRound(ctx, n)
	return n, nil
}

// SubmitOffer records a human counter-offer and wakes the other side's agent
// if it has one.
func (o *Orchestrator) SubmitOffer(ctx context.Context, id negotiation.NegotiationID, userID string, price decimal.Decimal, message string) (*negotiation.Negotiation, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	n, err := o.Negotiations.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	party, err := n.PartyOf(userID)
	if err != nil {
		return nil, err
	}
	if n.Status.Terminal() {
		return nil, ErrNegotiationClosed
	}
	offer, err := n.SubmitOffer(negotiation.SubmitOfferParams{
		ID:        o.newOfferID(),
		Price:     price,
		FromParty: party,
		Message:   message,
		Now:       o.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := o.Negotiations.Save(ctx, n); err != nil {
		return nil, err
	}
	o.publishEvents(ctx, n)
	o.notifyOffer(ctx, n, offer)
	o.maybeScheduleRound(ctx, n)
	return n, nil
}

// Accept is a human party taking the pending offer.
func (o *Orchestrator) Accept(ctx context.Context, id negotiation.NegotiationID, userID string) (*negotiation.Negotiation, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	n, err := o.Negotiations.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	party, err := n.PartyOf(userID)
	if err != nil {
		return nil, err
	}
	if _, err := n.AcceptActiveOffer(party, o.now()); err != nil {
		return nil, err
	}
	if err := o.Negotiations.Save(ctx, n); err != nil {
		return nil, err
	}
	o.publishEvents(ctx, n)
	o.notifyAgreement(ctx, n)
	return n, nil
}

// Reject is a human party declining the pending offer and ending the chain.
func (o *Orchestrator) Reject(ctx context.Context, id negotiation.NegotiationID, userID string, reason string) (*negotiation.Negotiation, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	n, err := o.Negotiations.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	party, err := n.PartyOf(userID)
	if err != nil {
		return nil, err
	}
	offer, err := n.RejectActiveOffer(party, reason, o.now())
	if err != nil {
		return nil, err
	}
	if err := o.Negotiations.Save(ctx, n); err != nil {
		return nil, err
	}
	o.publishEvents(ctx, n)
	if err := o.Notifier.NotifyRejection(ctx, n.UserOf(offer.FromParty), string(n.ID), reason); err != nil {
		o.logger().Warn("rejection notification failed", "negotiation_id", n.ID, "error", err)
	}
	return n, nil
}

// TriggerNextRound runs one agent round. It is safe to call late or twice:
// the state is re-read and the round silently no-ops when the latest offer is
// no longer pending or the negotiation has concluded. Stale triggers racing a
// live human response are expected, not errors.
func (o *Orchestrator) TriggerNextRound(ctx context.Context, id negotiation.NegotiationID) error {
	if err := o.validate(); err != nil {
		return err
	}
	n, err := o.Negotiations.ByID(ctx, id)
	if err != nil {
		return err
	}
	if n.Status != negotiation.StatusNegotiating {
		o.logger().Debug("stale round trigger, negotiation concluded", "negotiation_id", id, "status", n.Status)
		return nil
	}
	offer, err := n.ActiveOffer()
	if err != nil {
		o.logger().Debug("stale round trigger, no pending offer", "negotiation_id", id)
		return nil
	}

	responder := offer.ToParty
	ownerPrefs := o.loadPreferences(ctx, n.OwnerID)
	renterPrefs := o.loadPreferences(ctx, n.RenterID)
	responderPrefs := ownerPrefs
	if responder == negotiation.PartyRenter {
		responderPrefs = renterPrefs
	}
	if responderPrefs == nil || !responderPrefs.Enabled {
		// Opt-in invariant: the engine is never consulted for a human side.
		// The offer stays pending until that human responds.
		o.logger().Info("agent round skipped, responding side not opted in", "negotiation_id", id, "responder", responder)
		return nil
	}

	snap := o.Market.Snapshot(ctx, market.Query{
		SpaceCategory: n.SpaceCategory,
		Location:      n.Location,
		ListingPrice:  n.ListingPrice,
	})

	decision, err := o.Engine.Decide(engine.Context{
		NegotiationID: n.ID,
		ListingPrice:  n.ListingPrice,
		CurrentOffer:  offer.Price,
		OwnerPrefs:    ownerPrefs,
		RenterPrefs:   renterPrefs,
		History:       n.History(),
		Round:         n.Round(),
		Market:        snap,
	}, responder)
	if err != nil {
		return fmt.Errorf("negotiating: decision failed: %w", err)
	}

	o.execute(ctx, n, offer, responder, decision)
	return nil
}

// execute applies a computed decision. Persistence or notification failures
// here are logged and the decision is dropped, never retried: the next
// trigger (or a human) re-derives state from whatever did persist.
func (o *Orchestrator) execute(ctx context.Context, n *negotiation.Negotiation, offer *negotiation.Offer, responder negotiation.Party, decision engine.Decision) {
	offerer := offer.FromParty
	switch decision.Action {
	case engine.ActionAccept:
		if _, err := n.AcceptActiveOffer(responder, o.now()); err != nil {
			o.logger().Error("accept transition failed", "negotiation_id", n.ID, "error", err)
			return
		}
		if err := o.Negotiations.Save(ctx, n); err != nil {
			o.logger().Error("decision lost, accept not persisted", "negotiation_id", n.ID, "error", err)
			return
		}
		o.publishEvents(ctx, n)
		o.notifyAgreement(ctx, n)

	case engine.ActionReject:
		if _, err := n.RejectActiveOffer(responder, decision.Reasoning, o.now()); err != nil {
			o.logger().Error("reject transition failed", "negotiation_id", n.ID, "error", err)
			return
		}
		if err := o.Negotiations.Save(ctx, n); err != nil {
			o.logger().Error("decision lost, reject not persisted", "negotiation_id", n.ID, "error", err)
			return
		}
		o.publishEvents(ctx, n)
		if err := o.Notifier.NotifyRejection(ctx, n.UserOf(offerer), string(n.ID), decision.Reasoning); err != nil {
			o.logger().Warn("rejection notification failed", "negotiation_id", n.ID, "error", err)
		}

	case engine.ActionCounter:
		counter, err := n.SubmitOffer(negotiation.SubmitOfferParams{
			ID:        o.newOfferID(),
			Price:     decision.CounterPrice,
			FromParty: responder,
			Message:   decision.Reasoning,
			Generated: true,
			Now:       o.now(),
		})
		if err != nil {
			o.logger().Error("counter transition failed", "negotiation_id", n.ID, "error", err)
			return
		}
		if err := o.Negotiations.Save(ctx, n); err != nil {
			o.logger().Error("decision lost, counter not persisted", "negotiation_id", n.ID, "error", err)
			return
		}
		o.publishEvents(ctx, n)
		o.notifyOffer(ctx, n, counter)
		o.maybeScheduleRound(ctx, n)

	default:
		o.logger().Error("unknown decision action", "negotiation_id", n.ID, "action", decision.Action)
	}
}

// maybeScheduleRound queues an agent response to the current pending offer
// when the receiving side has opted in and its round cap is not yet spent.
// The scheduled task re-checks everything on fire; this check only avoids
// pointless timers.
func (o *Orchestrator) maybeScheduleRound(ctx context.Context, n *negotiation.Negotiation) {
	if o.Scheduler == nil {
		return
	}
	offer, err := n.ActiveOffer()
	if err != nil {
		return
	}
	prefs := o.loadPreferences(ctx, n.UserOf(offer.ToParty))
	if prefs == nil || !prefs.Enabled {
		return
	}
	if n.Round() > prefs.Normalized().MaxCounterOffers {
		o.logger().Info("round cap reached, not scheduling another agent round", "negotiation_id", n.ID, "round", n.Round())
		return
	}
	id := n.ID
	name := "negotiation.round:" + string(id)
	err = o.Scheduler.Schedule(ctx, name, o.RoundDelay, func(taskCtx context.Context) {
		if err := o.TriggerNextRound(taskCtx, id); err != nil {
			o.logger().Error("scheduled round failed", "negotiation_id", id, "error", err)
		}
	})
	if err != nil {
		o.logger().Error("round scheduling failed", "negotiation_id", id, "error", err)
	}
}

// loadPreferences treats "no record" and lookup failures the same way: the
// side is assumed human and no agent acts for it.
func (o *Orchestrator) loadPreferences(ctx context.Context, userID string) *negotiation.AgentPreferences {
	prefs, err := o.Preferences.ByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, negotiation.ErrPreferencesNotFound) {
			o.logger().Warn("preferences lookup failed", "user_id", userID, "error", err)
		}
		return nil
	}
	return prefs
}

func (o *Orchestrator) notifyOffer(ctx context.Context, n *negotiation.Negotiation, offer *negotiation.Offer) {
	if err := o.Notifier.NotifyOffer(ctx, n.UserOf(offer.ToParty), string(n.ID), offer.Price, offer.Message); err != nil {
		o.logger().Warn("offer notification failed", "negotiation_id", n.ID, "error", err)
	}
}

func (o *Orchestrator) notifyAgreement(ctx context.Context, n *negotiation.Negotiation) {
	for _, user := range []string{n.OwnerID, n.RenterID} {
		if err := o.Notifier.NotifyAgreementReady(ctx, user, string(n.ID)); err != nil {
			o.logger().Warn("agreement notification failed", "negotiation_id", n.ID, "user", user, "error", err)
		}
	}
}

func (o *Orchestrator) publishEvents(ctx context.Context, n *negotiation.Negotiation) {
	evs := n.PendingEvents()
	n.ClearEvents()
	if o.Events == nil || len(evs) == 0 {
		return
	}
	if err := o.Events.PublishEvents(ctx, evs); err != nil {
		o.logger().Warn("event publish failed", "negotiation_id", n.ID, "error", err)
	}
}

func (o *Orchestrator) validate() error {
	if o.Negotiations == nil || o.Preferences == nil || o.Market == nil || o.Engine == nil || o.Notifier == nil {
		return ErrOrchestratorMisconfigured
	}
	return nil
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) newOfferID() negotiation.OfferID {
	if o.NewOfferID != nil {
		return o.NewOfferID()
	}
	return negotiation.OfferID(ulid.Make().String())
}

func (o *Orchestrator) newNegotiationID() negotiation.NegotiationID {
	if o.NewNegotiationID != nil {
		return o.NewNegotiationID()
	}
	return negotiation.NegotiationID(uuid.NewString())
}
