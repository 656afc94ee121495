package booking

import (
	"context"
	"fmt"
	"slices"
	"time"

	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/shared/events"
	"roomstay/internal/domain/shared/money"
	"roomstay/internal/domain/units"
)

var (
	ErrInvalidTransition = apperr.New(apperr.InvalidTransition, "booking: invalid state transition")
	ErrBookingNotFound   = apperr.New(apperr.NotFound, "booking: not found")
	ErrInvalidGuests     = apperr.New(apperr.Validation, "booking: at least one adult is required")
	ErrGuestRequired     = apperr.New(apperr.Validation, "booking: guest id required")
	ErrCheckInInPast     = apperr.New(apperr.Validation, "booking: check-in date is in the past")
	ErrQuoteMismatch     = apperr.New(apperr.Invariant, "booking: frozen quote does not match the stay")
	ErrAmountMismatch    = apperr.New(apperr.Validation, "booking: paid amount does not cover the total")
	ErrRefundExceedsPaid = apperr.New(apperr.Invariant, "booking: refunds cannot exceed the amount paid")
)

type BookingID string

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

type PaymentStatus string

const (
	PaymentUnpaid            PaymentStatus = "unpaid"
	PaymentPartiallyPaid     PaymentStatus = "partially_paid"
	PaymentPaid              PaymentStatus = "paid"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentRefunded          PaymentStatus = "refunded"
)

const (
	ReasonHoldExpired    = "hold_expired"
	ReasonPaymentFailed  = "payment_failed"
	ReasonGuestRequest   = "guest_request"
	ReasonOperatorAction = "operator_action"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn: {StatusCheckedOut},
}

func CanTransitionTo(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a refused state change; it matches ErrInvalidTransition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking: cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type Guests struct {
	Adults   int `json:"adults" bson:"adults"`
	Children int `json:"children" bson:"children"`
}

func (g Guests) Total() int { return g.Adults + g.Children }

type Booking struct {
	ID             BookingID
	UnitID         units.UnitID
	PropertyID     units.PropertyID
	GuestID        string
	Stay           daterange.DateRange
	Guests         Guests
	Rooms          int
	Status         Status
	PaymentStatus  PaymentStatus
	AmountPaid     int64
	DueCents       int64
	Refunded       int64
	RefundIDs      []string
	Price          pricing.FrozenQuote
	Policy         cancellation.Policy
	CheckInAt      time.Time
	IdempotencyKey string
	HoldExpiresAt  time.Time
	PaymentRef     string
	CancelReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ByIdempotencyKey(ctx context.Context, key string) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	ListByUnit(ctx context.Context, unitID units.UnitID) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
}

type HoldParams struct {
	ID             BookingID
	Unit           *units.Unit
	GuestID        string
	Stay           daterange.DateRange
	Guests         Guests
	Rooms          int
	Price          pricing.FrozenQuote
	Policy         cancellation.Policy
	IdempotencyKey string
	HoldWindow     time.Duration
	Now            time.Time
}

// NewHold creates a pending booking that holds the unit until HoldExpiresAt.
func NewHold(p HoldParams) (*Booking, error) {
	if p.GuestID == "" {
		return nil, ErrGuestRequired
	}
	if p.Guests.Adults < 1 || p.Guests.Children < 0 {
		return nil, ErrInvalidGuests
	}
	now := p.Now.UTC()
	if p.Stay.CheckIn.Before(daterange.Day(now)) {
		return nil, ErrCheckInInPast
	}
	if p.Price.UnitID != string(p.Unit.ID) || p.Price.CheckIn != p.Stay.CheckIn.Format(daterange.DateLayout) || p.Price.CheckOut != p.Stay.CheckOut.Format(daterange.DateLayout) {
		return nil, ErrQuoteMismatch
	}
	rooms := p.Rooms
	if rooms == 0 {
		rooms = 1
	}
	b := &Booking{
		ID:             p.ID,
		UnitID:         p.Unit.ID,
		PropertyID:     p.Unit.PropertyID,
		GuestID:        p.GuestID,
		Stay:           p.Stay,
		Guests:         p.Guests,
		Rooms:          rooms,
		Status:         StatusPending,
		PaymentStatus:  PaymentUnpaid,
		Price:          p.Price,
		DueCents:       p.Unit.DepositDue(p.Price.TotalCents),
		Policy:         p.Policy,
		CheckInAt:      p.Unit.CheckInAt(p.Stay.CheckIn),
		IdempotencyKey: p.IdempotencyKey,
		HoldExpiresAt:  now.Add(p.HoldWindow),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.Record(BookingHeld{BookingID: b.ID, UnitID: b.UnitID, GuestID: b.GuestID, Stay: b.Stay, Total: b.Total(), ExpiresAt: b.HoldExpiresAt, At: now})
	return b, nil
}

func (b *Booking) Total() money.Money {
	return b.Price.Total()
}

// HoldExpired reports whether a pending booking outlived its hold window.
func (b *Booking) HoldExpired(now time.Time) bool {
	return b.Status == StatusPending && !now.Before(b.HoldExpiresAt)
}

// HoldsDates reports whether the booking still owns its availability block.
func (b *Booking) HoldsDates() bool {
	switch b.Status {
	case StatusCancelled, StatusNoShow:
		return false
	default:
		return true
	}
}

func (b *Booking) HoursUntilCheckIn(now time.Time) float64 {
	return b.CheckInAt.Sub(now).Hours()
}

// PaidBy reports whether paymentRef is the payment this booking was confirmed with.
func (b *Booking) PaidBy(paymentRef string) bool {
	return paymentRef != "" && b.PaymentRef == paymentRef && b.AmountPaid > 0
}

// Confirm marks a verified payment covering at least the amount due. Confirming
// an already confirmed booking changes nothing and reports no error, and so
// does replaying the confirming payment once the guest has checked in or out.
func (b *Booking) Confirm(paymentRef string, amountPaid int64, now time.Time) error {
	if b.Status == StatusConfirmed {
		return nil
	}
	if b.PaidBy(paymentRef) && (b.Status == StatusCheckedIn || b.Status == StatusCheckedOut) {
		return nil
	}
	if err := b.transition(StatusConfirmed); err != nil {
		return err
	}
	if amountPaid < b.amountDue() || amountPaid > b.Price.TotalCents {
		return ErrAmountMismatch
	}
	b.Status = StatusConfirmed
	b.PaymentRef = paymentRef
	b.AmountPaid = amountPaid
	b.PaymentStatus = PaymentPaid
	if amountPaid < b.Price.TotalCents {
		b.PaymentStatus = PaymentPartiallyPaid
	}
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, UnitID: b.UnitID, Stay: b.Stay, Total: b.Total(), PaymentRef: paymentRef, At: b.UpdatedAt})
	return nil
}

// Abort drops a pending hold. Aborting an already cancelled booking is a no-op.
func (b *Booking) Abort(reason string, now time.Time) error {
	if b.Status == StatusCancelled {
		return nil
	}
	if b.Status != StatusPending {
		return &TransitionError{From: b.Status, To: StatusCancelled}
	}
	return b.cancel(reason, now)
}

// Cancel ends a confirmed booking before arrival.
func (b *Booking) Cancel(reason string, now time.Time) error {
	if b.Status != StatusConfirmed {
		return &TransitionError{From: b.Status, To: StatusCancelled}
	}
	return b.cancel(reason, now)
}

func (b *Booking) CheckIn(now time.Time) error {
	if err := b.transition(StatusCheckedIn); err != nil {
		return err
	}
	b.Status = StatusCheckedIn
	b.UpdatedAt = now.UTC()
	b.Record(CheckedIn{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) CheckOut(now time.Time) error {
	if err := b.transition(StatusCheckedOut); err != nil {
		return err
	}
	b.Status = StatusCheckedOut
	b.UpdatedAt = now.UTC()
	b.Record(CheckedOut{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) MarkNoShow(now time.Time) error {
	if err := b.transition(StatusNoShow); err != nil {
		return err
	}
	b.Status = StatusNoShow
	b.UpdatedAt = now.UTC()
	b.Record(NoShowRecorded{BookingID: b.ID, UnitID: b.UnitID, At: b.UpdatedAt})
	return nil
}

// ApplyRefund books a completed refund against the amount paid. A refund id
// already applied is ignored.
func (b *Booking) ApplyRefund(refundID string, amount int64, now time.Time) error {
	if amount <= 0 || slices.Contains(b.RefundIDs, refundID) {
		return nil
	}
	if b.Refunded+amount > b.AmountPaid {
		return ErrRefundExceedsPaid
	}
	b.Refunded += amount
	b.RefundIDs = append(b.RefundIDs, refundID)
	if b.Refunded == b.AmountPaid {
		b.PaymentStatus = PaymentRefunded
	} else {
		b.PaymentStatus = PaymentPartiallyRefunded
	}
	b.UpdatedAt = now.UTC()
	return nil
}

func (b *Booking) amountDue() int64 {
	if b.DueCents > 0 {
		return b.DueCents
	}
	return b.Price.TotalCents
}

// RecordBalance adds a later instalment towards the total.
func (b *Booking) RecordBalance(amount int64, now time.Time) error {
	if b.Status != StatusConfirmed && b.Status != StatusCheckedIn {
		return &TransitionError{From: b.Status, To: b.Status}
	}
	if amount <= 0 || b.AmountPaid+amount > b.Price.TotalCents {
		return ErrAmountMismatch
	}
	b.AmountPaid += amount
	if b.AmountPaid == b.Price.TotalCents {
		b.PaymentStatus = PaymentPaid
	}
	b.UpdatedAt = now.UTC()
	return nil
}

func (b *Booking) cancel(reason string, now time.Time) error {
	previous := b.Status
	b.Status = StatusCancelled
	b.CancelReason = reason
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, UnitID: b.UnitID, From: previous, Reason: reason, At: b.UpdatedAt})
	return nil
}

func (b *Booking) transition(to Status) error {
	if !CanTransitionTo(b.Status, to) {
		return &TransitionError{From: b.Status, To: to}
	}
	return nil
}
