package refund

import (
	"context"
	"time"

	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/events"
)

var (
	ErrRequestNotFound   = apperr.New(apperr.NotFound, "refund: request not found")
	ErrInvalidAmount     = apperr.New(apperr.Validation, "refund: amount must be between zero and the amount paid")
	ErrOverrideRequired  = apperr.New(apperr.Validation, "refund: amount above the calculated refund needs an operator override")
	ErrInvalidTransition = apperr.New(apperr.InvalidTransition, "refund: invalid state transition")
	ErrNotRefundable     = apperr.New(apperr.Validation, "refund: booking has nothing to refund")
	ErrOpenRequestExists = apperr.New(apperr.Conflict, "refund: booking already has an open refund request")
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

type Request struct {
	ID              string
	BookingID       booking.BookingID
	GuestID         string
	Currency        string
	PaidCents       int64
	RequestedCents  int64
	CalculatedCents int64
	ApprovedCents   int64
	Percent         int
	Override        bool
	Status          Status
	Reason          string
	ReviewerID      string
	DecisionNote    string
	ProviderRef     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DecidedAt       time.Time
	PaidAt          time.Time
	Version         int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id string) (*Request, error)
	ByBooking(ctx context.Context, bookingID booking.BookingID) ([]*Request, error)
	Save(ctx context.Context, r *Request) error
}

type NewRequestParams struct {
	ID             string
	Booking        *booking.Booking
	Outcome        Outcome
	RequestedCents int64
	Reason         string
	Now            time.Time
}

// NewRequest opens a refund request. A zero RequestedCents asks for the calculated amount.
func NewRequest(p NewRequestParams) (*Request, error) {
	paid := p.Booking.AmountPaid - p.Booking.Refunded
	if paid <= 0 {
		return nil, ErrNotRefundable
	}
	requested := p.RequestedCents
	if requested == 0 {
		requested = p.Outcome.CalculatedCents
	}
	if requested < 0 || requested > paid {
		return nil, ErrInvalidAmount
	}
	now := p.Now.UTC()
	r := &Request{
		ID:              p.ID,
		BookingID:       p.Booking.ID,
		GuestID:         p.Booking.GuestID,
		Currency:        p.Outcome.Currency,
		PaidCents:       paid,
		RequestedCents:  requested,
		CalculatedCents: p.Outcome.CalculatedCents,
		Percent:         p.Outcome.Percent,
		Status:          StatusRequested,
		Reason:          p.Reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.Record(Requested{RequestID: r.ID, BookingID: r.BookingID, RequestedCents: requested, CalculatedCents: r.CalculatedCents, At: now})
	return r, nil
}

// Approve fixes the amount to pay out. Going above the calculated amount is
// only allowed with override and is recorded as an exception.
func (r *Request) Approve(reviewerID string, amountCents int64, override bool, note string, now time.Time) error {
	if r.Status != StatusRequested {
		return ErrInvalidTransition
	}
	if amountCents < 0 || amountCents > r.PaidCents {
		return ErrInvalidAmount
	}
	exception := amountCents > r.CalculatedCents
	if exception && !override {
		return ErrOverrideRequired
	}
	r.Status = StatusApproved
	r.ApprovedCents = amountCents
	r.Override = exception
	r.ReviewerID = reviewerID
	r.DecisionNote = note
	r.DecidedAt = now.UTC()
	r.UpdatedAt = r.DecidedAt
	r.Record(Approved{RequestID: r.ID, BookingID: r.BookingID, ApprovedCents: amountCents, CalculatedCents: r.CalculatedCents, Exception: exception, ReviewerID: reviewerID, At: r.DecidedAt})
	return nil
}

func (r *Request) Reject(reviewerID, note string, now time.Time) error {
	if r.Status != StatusRequested {
		return ErrInvalidTransition
	}
	r.Status = StatusRejected
	r.ReviewerID = reviewerID
	r.DecisionNote = note
	r.DecidedAt = now.UTC()
	r.UpdatedAt = r.DecidedAt
	r.Record(Rejected{RequestID: r.ID, BookingID: r.BookingID, ReviewerID: reviewerID, At: r.DecidedAt})
	return nil
}

func (r *Request) Withdraw(now time.Time) error {
	if r.Status != StatusRequested {
		return ErrInvalidTransition
	}
	r.Status = StatusWithdrawn
	r.UpdatedAt = now.UTC()
	r.Record(Withdrawn{RequestID: r.ID, BookingID: r.BookingID, At: r.UpdatedAt})
	return nil
}

// MarkPaid records the gateway payout. Repeating it for a paid request is a no-op.
func (r *Request) MarkPaid(providerRef string, now time.Time) error {
	if r.Status == StatusPaid {
		return nil
	}
	if r.Status != StatusApproved {
		return ErrInvalidTransition
	}
	r.Status = StatusPaid
	r.ProviderRef = providerRef
	r.PaidAt = now.UTC()
	r.UpdatedAt = r.PaidAt
	r.Record(Completed{RequestID: r.ID, BookingID: r.BookingID, AmountCents: r.ApprovedCents, Currency: r.Currency, ProviderRef: providerRef, At: r.PaidAt})
	return nil
}

// Open reports whether the request still awaits a decision or payout.
func (r *Request) Open() bool {
	return r.Status == StatusRequested || r.Status == StatusApproved
}
