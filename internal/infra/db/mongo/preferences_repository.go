package mongo

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainnegotiation "bagsy/internal/domain/negotiation"
)

type PreferencesRepository struct {
	col *mongo.Collection
}

func NewPreferencesRepository(db *mongo.Database) *PreferencesRepository {
	return &PreferencesRepository{col: db.Collection("agent_preferences")}
}

func (r *PreferencesRepository) ByUser(ctx context.Context, userID string) (*domainnegotiation.AgentPreferences, error) {
	var doc preferencesDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainnegotiation.ErrPreferencesNotFound
		}
		return nil, err
	}
	return doc.toPreferences()
}

func (r *PreferencesRepository) Save(ctx context.Context, prefs *domainnegotiation.AgentPreferences) error {
	doc := newPreferencesDocument(prefs)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

type preferencesDocument struct {
	ID                  string `bson:"_id"`
	Enabled             bool   `bson:"enabled"`
	MinAcceptablePrice  string `bson:"min_acceptable_price,omitempty"`
	MaxAcceptablePrice  string `bson:"max_acceptable_price,omitempty"`
	AutoAcceptThreshold string `bson:"auto_accept_threshold,omitempty"`
	Strategy            string `bson:"strategy"`
	MaxCounterOffers    int    `bson:"max_counter_offers"`
}

func newPreferencesDocument(p *domainnegotiation.AgentPreferences) preferencesDocument {
	doc := preferencesDocument{
		ID:               p.UserID,
		Enabled:          p.Enabled,
		Strategy:         string(p.Strategy),
		MaxCounterOffers: p.MaxCounterOffers,
	}
	if p.MinAcceptablePrice.IsPositive() {
		doc.MinAcceptablePrice = p.MinAcceptablePrice.String()
	}
	if p.MaxAcceptablePrice.IsPositive() {
		doc.MaxAcceptablePrice = p.MaxAcceptablePrice.String()
	}
	if p.AutoAcceptThreshold.IsPositive() {
		doc.AutoAcceptThreshold = p.AutoAcceptThreshold.String()
	}
	return doc
}

func (d preferencesDocument) toPreferences() (*domainnegotiation.AgentPreferences, error) {
	prefs := &domainnegotiation.AgentPreferences{
		UserID:           d.ID,
		Enabled:          d.Enabled,
		Strategy:         domainnegotiation.Strategy(d.Strategy),
		MaxCounterOffers: d.MaxCounterOffers,
	}
	var err error
	if d.MinAcceptablePrice != "" {
		if prefs.MinAcceptablePrice, err = decimal.NewFromString(d.MinAcceptablePrice); err != nil {
			return nil, err
		}
	}
	if d.MaxAcceptablePrice != "" {
		if prefs.MaxAcceptablePrice, err = decimal.NewFromString(d.MaxAcceptablePrice); err != nil {
			return nil, err
		}
	}
	if d.AutoAcceptThreshold != "" {
		if prefs.AutoAcceptThreshold, err = decimal.NewFromString(d.AutoAcceptThreshold); err != nil {
			return nil, err
		}
	}
	return prefs, nil
}
