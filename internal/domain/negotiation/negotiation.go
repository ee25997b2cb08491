package negotiation

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bagsy/internal/domain/shared/events"
)

var (
	ErrInvalidState       = errors.New("negotiation: invalid state transition")
	ErrNotFound           = errors.New("negotiation: not found")
	ErrNoActiveOffer      = errors.New("negotiation: no pending offer")
	ErrOfferNotActive     = errors.New("negotiation: offer is not the active pending offer")
	ErrNonPositivePrice   = errors.New("negotiation: price must be positive")
	ErrUnknownParticipant = errors.New("negotiation: party is not a participant")
)

type NegotiationID string

type OfferID string

// Party identifies which side of a negotiation an actor is on.
type Party string

const (
	PartyOwner  Party = "owner"
	PartyRenter Party = "renter"
)

// Opposite returns the counterparty side.
func (p Party) Opposite() Party {
	if p == PartyOwner {
		return PartyRenter
	}
	return PartyOwner
}

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusNegotiating Status = "NEGOTIATING"
	StatusAccepted    Status = "ACCEPTED"
	StatusRejected    Status = "REJECTED"
)

// Terminal reports whether no further offers may be appended.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

type OfferStatus string

const (
	OfferPending    OfferStatus = "PENDING"
	OfferAccepted   OfferStatus = "ACCEPTED"
	OfferRejected   OfferStatus = "REJECTED"
	OfferSuperseded OfferStatus = "SUPERSEDED"
)

// Offer is one immutable move in a negotiation. Offers form an append-only
// chain; only the newest offer may be pending.
type Offer struct {
	ID        OfferID
	Price     decimal.Decimal
	FromParty Party
	ToParty   Party
	Message   string
	Status    OfferStatus
	CreatedAt time.Time
}

// Negotiation is the aggregate root for one listing/renter price conversation.
// Offers are stored oldest-first; reads that need recency reverse on the way out.
type Negotiation struct {
	ID            NegotiationID
	ListingID     string
	OwnerID       string
	RenterID      string
	ListingPrice  decimal.Decimal
	SpaceCategory string
	Location      string
	Status        Status
	Offers        []Offer
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id NegotiationID) (*Negotiation, error)
	Save(ctx context.Context, n *Negotiation) error
	ListByParty(ctx context.Context, userID string) ([]*Negotiation, error)
}

type OpenParams struct {
	ID            NegotiationID
	ListingID     string
	OwnerID       string
	RenterID      string
	ListingPrice  decimal.Decimal
	SpaceCategory string
	Location      string
	CreatedAt     time.Time
}

// Open starts a negotiation with no offers yet attached.
func Open(params OpenParams) (*Negotiation, error) {
	if params.ListingPrice.IsZero() || params.ListingPrice.IsNegative() {
		return nil, ErrNonPositivePrice
	}
	if params.OwnerID == "" || params.RenterID == "" {
		return nil, errors.New("negotiation: both parties required")
	}
	now := params.CreatedAt.UTC()
	n := &Negotiation{
		ID:            params.ID,
		ListingID:     params.ListingID,
		OwnerID:       params.OwnerID,
		RenterID:      params.RenterID,
		ListingPrice:  params.ListingPrice,
		SpaceCategory: params.SpaceCategory,
		Location:      params.Location,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return n, nil
}

// PartyOf maps a user id to its side, or ErrUnknownParticipant.
func (n *Negotiation) PartyOf(userID string) (Party, error) {
	switch userID {
	case n.OwnerID:
		return PartyOwner, nil
	case n.RenterID:
		return PartyRenter, nil
	default:
		return "", ErrUnknownParticipant
	}
}

// UserOf is the inverse of PartyOf.
func (n *Negotiation) UserOf(party Party) string {
	if party == PartyOwner {
		return n.OwnerID
	}
	return n.RenterID
}

// ActiveOffer returns the newest offer iff it is still pending.
func (n *Negotiation) ActiveOffer() (*Offer, error) {
	if len(n.Offers) == 0 {
		return nil, ErrNoActiveOffer
	}
	last := &n.Offers[len(n.Offers)-1]
	if last.Status != OfferPending {
		return nil, ErrNoActiveOffer
	}
	return last, nil
}

// LatestOffer returns the newest offer regardless of status.
func (n *Negotiation) LatestOffer() *Offer {
	if len(n.Offers) == 0 {
		return nil
	}
	return &n.Offers[len(n.Offers)-1]
}

// History returns the offer chain most-recent-first.
func (n *Negotiation) History() []Offer {
	out := make([]Offer, len(n.Offers))
	for i, o := range n.Offers {
		out[len(n.Offers)-1-i] = o
	}
	return out
}

// Round counts completed moves; the context round number for the engine.
func (n *Negotiation) Round() int {
	return len(n.Offers)
}

type SubmitOfferParams struct {
	ID        OfferID
	Price     decimal.Decimal
	FromParty Party
	Message   string
	Generated bool
	Now       time.Time
}

// SubmitOffer appends a new pending offer, superseding the previous pending
// one if the submitting side is responding with a counter.
func (n *Negotiation) SubmitOffer(params SubmitOfferParams) (*Offer, error) {
	if n.Status.Terminal() {
		return nil, ErrInvalidState
	}
	if params.Price.IsZero() || params.Price.IsNegative() {
		return nil, ErrNonPositivePrice
	}
	now := params.Now.UTC()
	if last := n.LatestOffer(); last != nil && last.Status == OfferPending {
		if last.FromParty == params.FromParty {
			// a party may not stack offers on its own pending offer
			return nil, ErrInvalidState
		}
		last.Status = OfferSuperseded
	}
	offer := Offer{
		ID:        params.ID,
		Price:     params.Price.Round(2),
		FromParty: params.FromParty,
		ToParty:   params.FromParty.Opposite(),
		Message:   params.Message,
		Status:    OfferPending,
		CreatedAt: now,
	}
	n.Offers = append(n.Offers, offer)
	n.Status = StatusNegotiating
	n.UpdatedAt = now
	n.Record(OfferSubmitted{
		NegotiationID: n.ID,
		OfferID:       offer.ID,
		Price:         offer.Price,
		FromParty:     offer.FromParty,
		Generated:     params.Generated,
		At:            now,
	})
	return &n.Offers[len(n.Offers)-1], nil
}

// AcceptActiveOffer marks the pending offer accepted and concludes the
// negotiation at that price.
func (n *Negotiation) AcceptActiveOffer(by Party, now time.Time) (*Offer, error) {
	offer, err := n.ActiveOffer()
	if err != nil {
		return nil, err
	}
	if offer.ToParty != by {
		return nil, ErrInvalidState
	}
	offer.Status = OfferAccepted
	n.Status = StatusAccepted
	n.UpdatedAt = now.UTC()
	n.Record(AgreementReached{NegotiationID: n.ID, OfferID: offer.ID, Price: offer.Price, By: by, At: n.UpdatedAt})
	n.Record(NegotiationConcluded{NegotiationID: n.ID, Outcome: StatusAccepted, FinalPrice: offer.Price, At: n.UpdatedAt})
	return offer, nil
}

// RejectActiveOffer marks the pending offer rejected and concludes the
// negotiation with no agreement.
func (n *Negotiation) RejectActiveOffer(by Party, reason string, now time.Time) (*Offer, error) {
	offer, err := n.ActiveOffer()
	if err != nil {
		return nil, err
	}
	if offer.ToParty != by {
		return nil, ErrInvalidState
	}
	offer.Status = OfferRejected
	n.Status = StatusRejected
	n.UpdatedAt = now.UTC()
	n.Record(OfferDeclined{NegotiationID: n.ID, OfferID: offer.ID, By: by, Reason: reason, At: n.UpdatedAt})
	n.Record(NegotiationConcluded{NegotiationID: n.ID, Outcome: StatusRejected, At: n.UpdatedAt})
	return offer, nil
}
