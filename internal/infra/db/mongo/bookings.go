package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/units"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(colBookings)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := findOne(ctx, r.col, bson.M{"_id": string(id)}, &doc, domainbooking.ErrBookingNotFound); err != nil {
		return nil, err
	}
	return doc.toAggregate()
}

func (r *BookingRepository) ByIdempotencyKey(ctx context.Context, key string) (*domainbooking.Booking, error) {
	if key == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	var doc bookingDocument
	if err := findOne(ctx, r.col, bson.M{"idempotency_key": key}, &doc, domainbooking.ErrBookingNotFound); err != nil {
		return nil, err
	}
	return doc.toAggregate()
}

// Save fails with apperr.ErrConcurrentUpdate when b was loaded before the
// latest write or when another booking already owns its idempotency key.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	if err := versionedUpsert(ctx, r.col, doc.ID, b.Version, doc, apperr.ErrConcurrentUpdate); err != nil {
		return err
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByUnit(ctx context.Context, unitID units.UnitID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"unit_id": string(unitID)}, 0)
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"guest_id": guestID}, 0)
}

func (r *BookingRepository) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"status":          string(domainbooking.StatusPending),
		"hold_expires_at": bson.M{"$lte": now.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "hold_expires_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M, limit int64) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "stay.check_in", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.find(ctx, filter, opts)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		b, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

type bookingDocument struct {
	ID             string               `bson:"_id"`
	UnitID         string               `bson:"unit_id"`
	PropertyID     string               `bson:"property_id"`
	GuestID        string               `bson:"guest_id"`
	Stay           rangeDocument        `bson:"stay"`
	Guests         domainbooking.Guests `bson:"guests"`
	Rooms          int                  `bson:"rooms"`
	Status         string               `bson:"status"`
	PaymentStatus  string               `bson:"payment_status"`
	AmountPaid     int64                `bson:"amount_paid"`
	DueCents       int64                `bson:"due_cents"`
	Refunded       int64                `bson:"refunded"`
	RefundIDs      []string             `bson:"refund_ids"`
	Price          pricing.FrozenQuote  `bson:"price"`
	Policy         cancellation.Policy  `bson:"policy"`
	CheckInAt      time.Time            `bson:"check_in_at"`
	IdempotencyKey string               `bson:"idempotency_key,omitempty"`
	HoldExpiresAt  time.Time            `bson:"hold_expires_at"`
	PaymentRef     string               `bson:"payment_ref,omitempty"`
	CancelReason   string               `bson:"cancel_reason,omitempty"`
	CreatedAt      time.Time            `bson:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at"`
	Version        int64                `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:             string(b.ID),
		UnitID:         string(b.UnitID),
		PropertyID:     string(b.PropertyID),
		GuestID:        b.GuestID,
		Stay:           newRangeDocument(b.Stay),
		Guests:         b.Guests,
		Rooms:          b.Rooms,
		Status:         string(b.Status),
		PaymentStatus:  string(b.PaymentStatus),
		AmountPaid:     b.AmountPaid,
		DueCents:       b.DueCents,
		Refunded:       b.Refunded,
		RefundIDs:      b.RefundIDs,
		Price:          b.Price,
		Policy:         b.Policy,
		CheckInAt:      b.CheckInAt.UTC(),
		IdempotencyKey: b.IdempotencyKey,
		HoldExpiresAt:  b.HoldExpiresAt.UTC(),
		PaymentRef:     b.PaymentRef,
		CancelReason:   b.CancelReason,
		CreatedAt:      b.CreatedAt.UTC(),
		UpdatedAt:      b.UpdatedAt.UTC(),
		Version:        b.Version,
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	stay, err := d.Stay.toRange()
	if err != nil {
		return nil, fmt.Errorf("%w: booking %s: %w", errCorruptDocument, d.ID, err)
	}
	return &domainbooking.Booking{
		ID:             domainbooking.BookingID(d.ID),
		UnitID:         units.UnitID(d.UnitID),
		PropertyID:     units.PropertyID(d.PropertyID),
		GuestID:        d.GuestID,
		Stay:           stay,
		Guests:         d.Guests,
		Rooms:          d.Rooms,
		Status:         domainbooking.Status(d.Status),
		PaymentStatus:  domainbooking.PaymentStatus(d.PaymentStatus),
		AmountPaid:     d.AmountPaid,
		DueCents:       d.DueCents,
		Refunded:       d.Refunded,
		RefundIDs:      d.RefundIDs,
		Price:          d.Price,
		Policy:         d.Policy,
		CheckInAt:      d.CheckInAt.UTC(),
		IdempotencyKey: d.IdempotencyKey,
		HoldExpiresAt:  d.HoldExpiresAt.UTC(),
		PaymentRef:     d.PaymentRef,
		CancelReason:   d.CancelReason,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
		Version:        d.Version,
	}, nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
