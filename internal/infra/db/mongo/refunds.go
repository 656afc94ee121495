package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "roomstay/internal/domain/booking"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/shared/apperr"
)

type RefundRepository struct {
	col *mongo.Collection
}

func NewRefundRepository(db *mongo.Database) *RefundRepository {
	return &RefundRepository{col: db.Collection(colRefunds)}
}

func (r *RefundRepository) ByID(ctx context.Context, id string) (*refund.Request, error) {
	var doc refundDocument
	if err := findOne(ctx, r.col, bson.M{"_id": id}, &doc, refund.ErrRequestNotFound); err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *RefundRepository) ByBooking(ctx context.Context, bookingID domainbooking.BookingID) ([]*refund.Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"booking_id": string(bookingID)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []refundDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*refund.Request, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

// Save upserts on version. The unique partial index on open requests turns a
// second open request for the same booking into a duplicate key, which is
// reported as refund.ErrOpenRequestExists.
func (r *RefundRepository) Save(ctx context.Context, req *refund.Request) error {
	doc := newRefundDocument(req)
	doc.Version = req.Version + 1
	if err := versionedUpsert(ctx, r.col, doc.ID, req.Version, doc, apperr.ErrConcurrentUpdate); err != nil {
		if errors.Is(err, apperr.ErrConcurrentUpdate) && req.Open() {
			if clash, findErr := r.otherOpen(ctx, doc); findErr == nil && clash {
				return refund.ErrOpenRequestExists
			}
		}
		return err
	}
	req.Version = doc.Version
	return nil
}

func (r *RefundRepository) otherOpen(ctx context.Context, doc refundDocument) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{
		"_id":        bson.M{"$ne": doc.ID},
		"booking_id": doc.BookingID,
		"open":       true,
	}, options.Count().SetLimit(1))
	return n > 0, err
}

type refundDocument struct {
	ID              string    `bson:"_id"`
	BookingID       string    `bson:"booking_id"`
	GuestID         string    `bson:"guest_id"`
	Currency        string    `bson:"currency"`
	PaidCents       int64     `bson:"paid_cents"`
	RequestedCents  int64     `bson:"requested_cents"`
	CalculatedCents int64     `bson:"calculated_cents"`
	ApprovedCents   int64     `bson:"approved_cents"`
	Percent         int       `bson:"percent"`
	Override        bool      `bson:"override"`
	Status          string    `bson:"status"`
	Open            bool      `bson:"open"`
	Reason          string    `bson:"reason,omitempty"`
	ReviewerID      string    `bson:"reviewer_id,omitempty"`
	DecisionNote    string    `bson:"decision_note,omitempty"`
	ProviderRef     string    `bson:"provider_ref,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
	DecidedAt       time.Time `bson:"decided_at"`
	PaidAt          time.Time `bson:"paid_at"`
	Version         int64     `bson:"version"`
}

func newRefundDocument(r *refund.Request) refundDocument {
	return refundDocument{
		ID:              r.ID,
		BookingID:       string(r.BookingID),
		GuestID:         r.GuestID,
		Currency:        r.Currency,
		PaidCents:       r.PaidCents,
		RequestedCents:  r.RequestedCents,
		CalculatedCents: r.CalculatedCents,
		ApprovedCents:   r.ApprovedCents,
		Percent:         r.Percent,
		Override:        r.Override,
		Status:          string(r.Status),
		Open:            r.Open(),
		Reason:          r.Reason,
		ReviewerID:      r.ReviewerID,
		DecisionNote:    r.DecisionNote,
		ProviderRef:     r.ProviderRef,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		DecidedAt:       r.DecidedAt.UTC(),
		PaidAt:          r.PaidAt.UTC(),
		Version:         r.Version,
	}
}

func (d refundDocument) toAggregate() *refund.Request {
	return &refund.Request{
		ID:              d.ID,
		BookingID:       domainbooking.BookingID(d.BookingID),
		GuestID:         d.GuestID,
		Currency:        d.Currency,
		PaidCents:       d.PaidCents,
		RequestedCents:  d.RequestedCents,
		CalculatedCents: d.CalculatedCents,
		ApprovedCents:   d.ApprovedCents,
		Percent:         d.Percent,
		Override:        d.Override,
		Status:          refund.Status(d.Status),
		Reason:          d.Reason,
		ReviewerID:      d.ReviewerID,
		DecisionNote:    d.DecisionNote,
		ProviderRef:     d.ProviderRef,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		DecidedAt:       d.DecidedAt.UTC(),
		PaidAt:          d.PaidAt.UTC(),
		Version:         d.Version,
	}
}

var _ refund.Repository = (*RefundRepository)(nil)
