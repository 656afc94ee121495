package refunds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomstay/internal/app/outbox"
	"roomstay/internal/app/policies"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/events"
	"roomstay/internal/domain/units"
)

var (
	ErrRequestOpen      = refund.ErrOpenRequestExists
	ErrNotBookingGuest  = apperr.New(apperr.Forbidden, "refunds: booking belongs to another guest")
	ErrPayoutIncomplete = apperr.New(apperr.Upstream, "refunds: gateway did not complete the refund")
	ErrServiceNotReady  = errors.New("refunds: service missing dependencies")

	ErrPayoutExceedsPolicy = apperr.New(apperr.Conflict, "refunds: payout would exceed the policy refund for the booking")
	ErrPayoutExceedsPaid   = apperr.New(apperr.Conflict, "refunds: payout would exceed the amount paid")
)

const ReasonCancellation = "cancellation"

// Service runs refund requests from proposal to payout. Payouts are keyed by
// the request id so the gateway never pays a request twice.
type Service struct {
	Bookings   booking.Repository
	Refunds    refund.Repository
	Locker     policies.UnitLocker
	Gateway    policies.PaymentGateway
	Calculator refund.Calculator
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	NewID      func() string
	Logger     *slog.Logger

	mu sync.Mutex
}

// Preview returns what the booking's policy refunds if cancelled now.
func (s *Service) Preview(ctx context.Context, bookingID booking.BookingID) (refund.Outcome, error) {
	if err := s.ensure(); err != nil {
		return refund.Outcome{}, err
	}
	b, err := s.Bookings.ByID(ctx, bookingID)
	if err != nil {
		return refund.Outcome{}, err
	}
	return s.Calculator.Calculate(b, b.AmountPaid-b.Refunded, s.now()), nil
}

type RequestInput struct {
	BookingID      booking.BookingID
	RequesterID    string
	Operator       bool
	RequestedCents int64
	Reason         string
}

// Request opens a refund request. A zero RequestedCents asks for the amount
// the policy grants.
func (s *Service) Request(ctx context.Context, in RequestInput) (*refund.Request, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	b, err := s.Bookings.ByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if !in.Operator && b.GuestID != in.RequesterID {
		return nil, ErrNotBookingGuest
	}
	return s.open(ctx, b, in.RequestedCents, in.Reason)
}

// OpenForCancellation files the policy refund for a freshly cancelled booking.
// Nothing is filed when the policy grants no money back.
func (s *Service) OpenForCancellation(ctx context.Context, b *booking.Booking) (*refund.Request, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	paid := b.AmountPaid - b.Refunded
	if paid <= 0 {
		return nil, nil
	}
	if s.Calculator.Calculate(b, paid, s.now()).CalculatedCents == 0 {
		return nil, nil
	}
	return s.open(ctx, b, 0, ReasonCancellation)
}

func (s *Service) open(ctx context.Context, b *booking.Booking, requested int64, reason string) (*refund.Request, error) {
	var (
		r       *refund.Request
		outcome refund.Outcome
	)
	err := s.withUnit(ctx, b.UnitID, func() error {
		current, err := s.Bookings.ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		existing, err := s.Refunds.ByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.Open() {
				return ErrRequestOpen
			}
		}
		now := s.now()
		outcome = s.Calculator.Calculate(current, current.AmountPaid-current.Refunded, now)
		r, err = refund.NewRequest(refund.NewRequestParams{
			ID:             s.newID(),
			Booking:        current,
			Outcome:        outcome,
			RequestedCents: requested,
			Reason:         reason,
			Now:            now,
		})
		if err != nil {
			return err
		}
		return s.Refunds.Save(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, r.Drain())
	s.logger().InfoContext(ctx, "refund requested",
		slog.String("refund_id", r.ID),
		slog.String("booking_id", string(b.ID)),
		slog.Int("percent", outcome.Percent),
		slog.Int64("requested_cents", r.RequestedCents),
		slog.Int64("calculated_cents", r.CalculatedCents))
	return r, nil
}

type ApproveInput struct {
	RequestID  string
	ReviewerID string
	// AmountCents of zero approves the requested amount.
	AmountCents int64
	Override    bool
	Note        string
}

func (s *Service) Approve(ctx context.Context, in ApproveInput) (*refund.Request, error) {
	return s.decide(ctx, in.RequestID, func(r *refund.Request, now time.Time) error {
		amount := in.AmountCents
		if amount == 0 {
			amount = r.RequestedCents
		}
		if err := r.Approve(in.ReviewerID, amount, in.Override, in.Note, now); err != nil {
			return err
		}
		if r.Override {
			s.logger().WarnContext(ctx, "refund approved above policy",
				slog.String("refund_id", r.ID),
				slog.String("reviewer_id", in.ReviewerID),
				slog.Int64("approved_cents", r.ApprovedCents),
				slog.Int64("calculated_cents", r.CalculatedCents))
		}
		return nil
	})
}

func (s *Service) Reject(ctx context.Context, requestID, reviewerID, note string) (*refund.Request, error) {
	return s.decide(ctx, requestID, func(r *refund.Request, now time.Time) error {
		return r.Reject(reviewerID, note, now)
	})
}

// Withdraw lets the guest who filed the request take it back.
func (s *Service) Withdraw(ctx context.Context, requestID, guestID string) (*refund.Request, error) {
	return s.decide(ctx, requestID, func(r *refund.Request, now time.Time) error {
		if r.GuestID != guestID {
			return ErrNotBookingGuest
		}
		return r.Withdraw(now)
	})
}

func (s *Service) decide(ctx context.Context, requestID string, fn func(r *refund.Request, now time.Time) error) (*refund.Request, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	r, err := s.Refunds.ByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := fn(r, s.now()); err != nil {
		return nil, err
	}
	if err := s.Refunds.Save(ctx, r); err != nil {
		return nil, err
	}
	s.publish(ctx, r.Drain())
	return r, nil
}

// Payout pays an approved request through the gateway and books it on the
// booking. Calling it again after success, or after a crash between the two
// writes, completes the missing step without paying twice. The request and
// booking are re-read under the unit lock, and a payout that would take the
// booking's paid refunds past the policy amount or the amount paid is refused.
func (s *Service) Payout(ctx context.Context, requestID string) (*refund.Request, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if s.Gateway == nil {
		return nil, ErrServiceNotReady
	}
	r, err := s.Refunds.ByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	b, err := s.Bookings.ByID(ctx, r.BookingID)
	if err != nil {
		return nil, err
	}
	var result *refund.Request
	err = s.withUnit(ctx, b.UnitID, func() error {
		r, err := s.Refunds.ByID(ctx, requestID)
		if err != nil {
			return err
		}
		if r.Status != refund.StatusApproved && r.Status != refund.StatusPaid {
			return refund.ErrInvalidTransition
		}
		b, err := s.Bookings.ByID(ctx, r.BookingID)
		if err != nil {
			return err
		}
		if r.Status == refund.StatusApproved {
			if err := s.pay(ctx, b, r); err != nil {
				return err
			}
		}
		result = r
		return s.applyToBooking(ctx, b, r)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) pay(ctx context.Context, b *booking.Booking, r *refund.Request) error {
	if err := s.checkPayout(ctx, b, r); err != nil {
		s.logger().WarnContext(ctx, "refund payout refused",
			slog.String("refund_id", r.ID),
			slog.String("booking_id", string(b.ID)),
			slog.Int64("approved_cents", r.ApprovedCents),
			slog.Any("error", err))
		return err
	}
	providerRef := ""
	if r.ApprovedCents > 0 {
		res, err := s.Gateway.Refund(ctx, policies.RefundRequest{
			AmountCents:    r.ApprovedCents,
			Currency:       r.Currency,
			ProviderRef:    b.PaymentRef,
			IdempotencyKey: r.ID,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPayoutIncomplete, err)
		}
		if !res.Completed {
			return ErrPayoutIncomplete
		}
		providerRef = res.ProviderRef
	}
	if err := r.MarkPaid(providerRef, s.now()); err != nil {
		return err
	}
	if err := s.Refunds.Save(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, r.Drain())
	return nil
}

// checkPayout sums the refunds already paid on the booking. An override may
// go past the policy amount but never past what the guest paid.
func (s *Service) checkPayout(ctx context.Context, b *booking.Booking, r *refund.Request) error {
	all, err := s.Refunds.ByBooking(ctx, b.ID)
	if err != nil {
		return err
	}
	var paid int64
	for _, other := range all {
		if other.ID != r.ID && other.Status == refund.StatusPaid {
			paid += other.ApprovedCents
		}
	}
	paid = max(paid, b.Refunded)
	if paid+r.ApprovedCents > b.AmountPaid {
		return ErrPayoutExceedsPaid
	}
	if r.Override {
		return nil
	}
	limit := s.Calculator.Calculate(b, b.AmountPaid, r.CreatedAt).CalculatedCents
	if paid+r.ApprovedCents > limit {
		return ErrPayoutExceedsPolicy
	}
	return nil
}

// applyToBooking runs under the unit lock.
func (s *Service) applyToBooking(ctx context.Context, b *booking.Booking, r *refund.Request) error {
	current, err := s.Bookings.ByID(ctx, b.ID)
	if err != nil {
		return err
	}
	if err := current.ApplyRefund(r.ID, r.ApprovedCents, s.now()); err != nil {
		s.logger().ErrorContext(ctx, "refund does not fit booking",
			slog.String("refund_id", r.ID), slog.String("booking_id", string(b.ID)), slog.Any("error", err))
		return err
	}
	return s.Bookings.Save(ctx, current)
}

// ListForBooking returns the refund requests filed against a booking.
func (s *Service) ListForBooking(ctx context.Context, bookingID booking.BookingID) ([]*refund.Request, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s.Refunds.ByBooking(ctx, bookingID)
}

func (s *Service) publish(ctx context.Context, evs []events.DomainEvent) {
	if err := outbox.RecordDomainEvents(ctx, s.Outbox, s.Encoder, evs); err != nil {
		s.logger().ErrorContext(ctx, "record events failed", slog.Any("error", err))
	}
}

// withUnit serializes refund writers on the booking's unit. Without a Locker
// the service falls back to one process-wide mutex.
func (s *Service) withUnit(ctx context.Context, unitID units.UnitID, fn func() error) error {
	if s.Locker == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn()
	}
	unlock, err := s.Locker.Lock(ctx, unitID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *Service) ensure() error {
	if s.Bookings == nil || s.Refunds == nil {
		return ErrServiceNotReady
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return "rf-" + uuid.NewString()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
