package negotiation

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferSubmitted struct {
	NegotiationID NegotiationID
	OfferID       OfferID
	Price         decimal.Decimal
	FromParty     Party
	Generated     bool
	At            time.Time
}

func (e OfferSubmitted) EventName() string     { return "negotiation.offer_submitted" }
func (e OfferSubmitted) AggregateID() string   { return string(e.NegotiationID) }
func (e OfferSubmitted) OccurredAt() time.Time { return e.At }

type AgreementReached struct {
	NegotiationID NegotiationID
	OfferID       OfferID
	Price         decimal.Decimal
	By            Party
	At            time.Time
}

func (e AgreementReached) EventName() string     { return "negotiation.agreement_reached" }
func (e AgreementReached) AggregateID() string   { return string(e.NegotiationID) }
func (e AgreementReached) OccurredAt() time.Time { return e.At }

type OfferDeclined struct {
	NegotiationID NegotiationID
	OfferID       OfferID
	By            Party
	Reason        string
	At            time.Time
}

func (e OfferDeclined) EventName() string     { return "negotiation.offer_declined" }
func (e OfferDeclined) AggregateID() string   { return string(e.NegotiationID) }
func (e OfferDeclined) OccurredAt() time.Time { return e.At }

type NegotiationConcluded struct {
	NegotiationID NegotiationID
	Outcome       Status
	FinalPrice    decimal.Decimal
	At            time.Time
}

func (e NegotiationConcluded) EventName() string     { return "negotiation.concluded" }
func (e NegotiationConcluded) AggregateID() string   { return string(e.NegotiationID) }
func (e NegotiationConcluded) OccurredAt() time.Time { return e.At }
