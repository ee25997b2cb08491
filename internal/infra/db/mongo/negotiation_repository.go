package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainnegotiation "bagsy/internal/domain/negotiation"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type NegotiationRepository struct {
	col *mongo.Collection
}

func NewNegotiationRepository(db *mongo.Database) *NegotiationRepository {
	return &NegotiationRepository{col: db.Collection("agg_negotiation")}
}

func (r *NegotiationRepository) ByID(ctx context.Context, id domainnegotiation.NegotiationID) (*domainnegotiation.Negotiation, error) {
	var doc negotiationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainnegotiation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

// Save upserts the aggregate with an optimistic version filter: a concurrent
// writer that got there first makes the filter match nothing.
func (r *NegotiationRepository) Save(ctx context.Context, n *domainnegotiation.Negotiation) error {
	doc := newNegotiationDocument(n)
	filter := bson.M{"_id": doc.ID, "version": n.Version}
	doc.Version = n.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	n.Version = doc.Version
	return nil
}

func (r *NegotiationRepository) ListByParty(ctx context.Context, userID string) ([]*domainnegotiation.Negotiation, error) {
	filter := bson.M{"$or": bson.A{bson.M{"owner_id": userID}, bson.M{"renter_id": userID}}}
	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*domainnegotiation.Negotiation
	for cursor.Next(ctx) {
		var doc negotiationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		agg, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, cursor.Err()
}

type offerDocument struct {
	ID        string `bson:"_id"`
	Price     string `bson:"price"`
	FromParty string `bson:"from_party"`
	ToParty   string `bson:"to_party"`
	Message   string `bson:"message"`
	Status    string `bson:"status"`
	CreatedAt int64  `bson:"created_at"`
}

type negotiationDocument struct {
	ID            string          `bson:"_id"`
	ListingID     string          `bson:"listing_id"`
	OwnerID       string          `bson:"owner_id"`
	RenterID      string          `bson:"renter_id"`
	ListingPrice  string          `bson:"listing_price"`
	SpaceCategory string          `bson:"space_category"`
	Location      string          `bson:"location"`
	Status        string          `bson:"status"`
	Offers        []offerDocument `bson:"offers"`
	CreatedAt     int64           `bson:"created_at"`
	UpdatedAt     int64           `bson:"updated_at"`
	Version       int64           `bson:"version"`
}

func newNegotiationDocument(n *domainnegotiation.Negotiation) negotiationDocument {
	offers := make([]offerDocument, len(n.Offers))
	for i, o := range n.Offers {
		offers[i] = offerDocument{
			ID:        string(o.ID),
			Price:     o.Price.String(),
			FromParty: string(o.FromParty),
			ToParty:   string(o.ToParty),
			Message:   o.Message,
			Status:    string(o.Status),
			CreatedAt: o.CreatedAt.UnixMilli(),
		}
	}
	return negotiationDocument{
		ID:            string(n.ID),
		ListingID:     n.ListingID,
		OwnerID:       n.OwnerID,
		RenterID:      n.RenterID,
		ListingPrice:  n.ListingPrice.String(),
		SpaceCategory: n.SpaceCategory,
		Location:      n.Location,
		Status:        string(n.Status),
		Offers:        offers,
		CreatedAt:     n.CreatedAt.UnixMilli(),
		UpdatedAt:     n.UpdatedAt.UnixMilli(),
		Version:       n.Version,
	}
}

func (d negotiationDocument) toAggregate() (*domainnegotiation.Negotiation, error) {
	listingPrice, err := decimal.NewFromString(d.ListingPrice)
	if err != nil {
		return nil, err
	}
	offers := make([]domainnegotiation.Offer, len(d.Offers))
	for i, o := range d.Offers {
		price, err := decimal.NewFromString(o.Price)
		if err != nil {
			return nil, err
		}
		offers[i] = domainnegotiation.Offer{
			ID:        domainnegotiation.OfferID(o.ID),
			Price:     price,
			FromParty: domainnegotiation.Party(o.FromParty),
			ToParty:   domainnegotiation.Party(o.ToParty),
			Message:   o.Message,
			Status:    domainnegotiation.OfferStatus(o.Status),
			CreatedAt: timestampToTime(o.CreatedAt),
		}
	}
	return &domainnegotiation.Negotiation{
		ID:            domainnegotiation.NegotiationID(d.ID),
		ListingID:     d.ListingID,
		OwnerID:       d.OwnerID,
		RenterID:      d.RenterID,
		ListingPrice:  listingPrice,
		SpaceCategory: d.SpaceCategory,
		Location:      d.Location,
		Status:        domainnegotiation.Status(d.Status),
		Offers:        offers,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		Version:       d.Version,
	}, nil
}

func timestampToTime(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}
