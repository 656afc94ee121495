package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
)

const (
	colBookings   = "bookings"
	colRefunds    = "refund_requests"
	colCalendars  = "calendars"
	colProperties = "properties"
	colUnits      = "units"
	colSchedules  = "seasonal_schedules"
	colPromotions = "promotions"
	colAddOns     = "addons"
	colPolicies   = "cancellation_policies"
	colIdempotent = "idempotency"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := m.Ping(ctx, nil); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on for lookups and
// uniqueness. It is safe to call on every start.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	nonEmptyKey := bson.M{"idempotency_key": bson.M{"$gt": ""}}
	openPerBooking := options.Index().SetName("refunds_open_per_booking").SetUnique(true).
		SetPartialFilterExpression(bson.M{"open": true})
	specs := map[string][]mongo.IndexModel{
		colBookings: {
			{Keys: bson.D{{Key: "idempotency_key", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmptyKey)},
			{Keys: bson.D{{Key: "unit_id", Value: 1}, {Key: "stay.check_in", Value: 1}}},
			{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "stay.check_in", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "hold_expires_at", Value: 1}}},
		},
		colRefunds: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "booking_id", Value: 1}}, Options: openPerBooking},
		},
		colUnits: {
			{Keys: bson.D{{Key: "property_id", Value: 1}}},
		},
	}
	for name, models := range specs {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

type rangeDocument struct {
	CheckIn  string `bson:"check_in"`
	CheckOut string `bson:"check_out"`
}

func newRangeDocument(r daterange.DateRange) rangeDocument {
	return rangeDocument{CheckIn: r.CheckIn.Format(daterange.DateLayout), CheckOut: r.CheckOut.Format(daterange.DateLayout)}
}

func (d rangeDocument) toRange() (daterange.DateRange, error) {
	return daterange.Parse(d.CheckIn, d.CheckOut)
}

// versionedUpsert writes doc when the stored version still equals version.
// A missing document is inserted; any other mismatch is a lost race.
func versionedUpsert(ctx context.Context, col *mongo.Collection, id any, version int64, doc any, stale error) error {
	filter := bson.M{"_id": id, "version": version}
	res, err := col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stale
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return stale
	}
	return nil
}

// findOne decodes the document matching filter, mapping a miss to notFound.
func findOne(ctx context.Context, col *mongo.Collection, filter any, out any, notFound error) error {
	err := col.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return err
}

var errCorruptDocument = apperr.New(apperr.Invariant, "mongo: stored document is inconsistent")
