package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"roomstay/internal/app/outbox"
	"roomstay/internal/app/policies"
	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/shared/events"
	"roomstay/internal/domain/units"
)

var (
	ErrHoldExpired     = apperr.New(apperr.Conflict, "lifecycle: hold expired before payment was confirmed")
	ErrBookingClosed   = apperr.New(apperr.Conflict, "lifecycle: booking no longer accepts payment")
	ErrKeyReused       = apperr.New(apperr.Conflict, "lifecycle: idempotency key already used by another guest")
	ErrNotManualBlock  = apperr.New(apperr.Validation, "lifecycle: only manual blocks can be removed")
	ErrNotOwner        = apperr.New(apperr.Forbidden, "lifecycle: unit belongs to another owner")
	ErrManagerNotReady = errors.New("lifecycle: manager missing dependencies")
)

// nonRefundable applies to units without a declared policy.
var nonRefundable = cancellation.Policy{ID: "non_refundable", Scope: "default", Tiers: []cancellation.Tier{{MinHoursBeforeCheckIn: 0, RefundPercent: 0}}}

const defaultHoldWindow = 15 * time.Minute

// Manager owns every booking state change. Writers on a unit are serialized by
// Locker; the availability Index is the only place dates are claimed.
type Manager struct {
	Catalog    units.Catalog
	Policies   cancellation.Repository
	Bookings   booking.Repository
	Index      availability.Index
	Locker     policies.UnitLocker
	Quoter     *pricing.Quoter
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Archive    policies.QuoteArchive
	HoldWindow time.Duration
	Now        func() time.Time
	NewID      func() string
	Logger     *slog.Logger
}

type HoldInput struct {
	IdempotencyKey      string
	GuestID             string
	UnitID              units.UnitID
	Stay                daterange.DateRange
	Guests              booking.Guests
	Rooms               int
	AddOnIDs            []string
	PromotionID         string
	ClientDiscountCents *int64
}

// Hold prices the stay, claims the dates and stores a pending booking. A
// repeated idempotency key returns the booking created the first time.
func (m *Manager) Hold(ctx context.Context, in HoldInput) (*booking.Booking, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	if existing, err := m.byKey(ctx, in.IdempotencyKey, in.GuestID); err != nil || existing != nil {
		return existing, err
	}
	quote, unit, err := m.Quoter.Quote(ctx, pricing.Request{
		UnitID:              in.UnitID,
		Stay:                in.Stay,
		Guests:              in.Guests.Total(),
		Rooms:               in.Rooms,
		AddOnIDs:            in.AddOnIDs,
		PromotionID:         in.PromotionID,
		ClientDiscountCents: in.ClientDiscountCents,
	})
	if err != nil {
		return nil, err
	}
	policy, err := m.policyFor(ctx, unit)
	if err != nil {
		return nil, err
	}

	unlock, err := m.Locker.Lock(ctx, unit.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if existing, err := m.byKey(ctx, in.IdempotencyKey, in.GuestID); err != nil || existing != nil {
		return existing, err
	}

	now := m.now()
	b, err := booking.NewHold(booking.HoldParams{
		ID:             booking.BookingID(m.newID()),
		Unit:           unit,
		GuestID:        in.GuestID,
		Stay:           in.Stay,
		Guests:         in.Guests,
		Rooms:          in.Rooms,
		Price:          quote.Freeze(),
		Policy:         policy,
		IdempotencyKey: in.IdempotencyKey,
		HoldWindow:     m.holdWindow(),
		Now:            now,
	})
	if err != nil {
		return nil, err
	}
	if err := m.Index.Reserve(ctx, unit.ID, in.Stay, availability.ReasonBooking, string(b.ID)); err != nil {
		if errors.Is(err, availability.ErrOverlappingRange) {
			m.logger().InfoContext(ctx, "hold refused: dates taken",
				slog.String("unit_id", string(unit.ID)), slog.String("stay", in.Stay.String()))
			m.publish(ctx, availability.OverbookingPreventedEvent(unit.ID, in.Stay, now))
		}
		return nil, err
	}
	if err := m.Bookings.Save(ctx, b); err != nil {
		if relErr := m.Index.Release(ctx, unit.ID, string(b.ID)); relErr != nil {
			m.logger().ErrorContext(ctx, "compensating release failed",
				slog.String("booking_id", string(b.ID)), slog.Any("error", relErr))
			return nil, errors.Join(err, relErr)
		}
		return nil, err
	}
	m.publish(ctx, append(b.Drain(), availability.BlockedEvent(unit.ID, in.Stay, availability.ReasonBooking, string(b.ID), now))...)
	m.archive(ctx, b)
	m.logger().InfoContext(ctx, "booking held",
		slog.String("booking_id", string(b.ID)),
		slog.String("unit_id", string(b.UnitID)),
		slog.Int64("total_cents", b.Price.TotalCents),
		slog.Time("expires_at", b.HoldExpiresAt))
	return b, nil
}

type ConfirmInput struct {
	BookingID   booking.BookingID
	PaymentRef  string
	AmountCents int64
}

// Confirm records a verified payment. It is idempotent for a payment already
// recorded and for bookings past confirmation. Payments the booking can no
// longer take come back with the booking and ErrHoldExpired or
// ErrBookingClosed so the caller can void them.
func (m *Manager) Confirm(ctx context.Context, in ConfirmInput) (*booking.Booking, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	b, err := m.Bookings.ByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if settled(b, in.PaymentRef) {
		return b, nil
	}
	var result *booking.Booking
	err = m.withUnit(ctx, b.UnitID, func() error {
		b, err := m.Bookings.ByID(ctx, in.BookingID)
		if err != nil {
			return err
		}
		result = b
		now := m.now()
		switch {
		case settled(b, in.PaymentRef):
			return nil
		case b.HoldExpired(now):
			if err := m.cancel(ctx, b, func() error { return b.Abort(booking.ReasonHoldExpired, now) }); err != nil {
				return err
			}
			return ErrHoldExpired
		case b.Status == booking.StatusCancelled && b.CancelReason == booking.ReasonHoldExpired:
			return ErrHoldExpired
		case b.Status == booking.StatusCancelled || b.Status == booking.StatusNoShow:
			return ErrBookingClosed
		}
		if err := b.Confirm(in.PaymentRef, in.AmountCents, now); err != nil {
			return err
		}
		if err := m.Bookings.Save(ctx, b); err != nil {
			return err
		}
		m.publish(ctx, b.Drain()...)
		m.logger().InfoContext(ctx, "booking confirmed",
			slog.String("booking_id", string(b.ID)), slog.String("payment_ref", in.PaymentRef))
		return nil
	})
	if err != nil && !errors.Is(err, ErrHoldExpired) && !errors.Is(err, ErrBookingClosed) {
		return nil, err
	}
	return result, err
}

// settled reports whether a payment needs no further confirmation: the booking
// already recorded this payment, or it is confirmed or in stay.
func settled(b *booking.Booking, paymentRef string) bool {
	if b.PaidBy(paymentRef) {
		return true
	}
	switch b.Status {
	case booking.StatusConfirmed, booking.StatusCheckedIn, booking.StatusCheckedOut:
		return true
	default:
		return false
	}
}

// Abort drops a pending hold and frees its dates. Aborting a cancelled booking
// is a no-op.
func (m *Manager) Abort(ctx context.Context, id booking.BookingID, reason string) (*booking.Booking, error) {
	return m.transition(ctx, id, func(b *booking.Booking, now time.Time) (bool, error) {
		if b.Status == booking.StatusCancelled {
			return false, nil
		}
		return true, b.Abort(reason, now)
	})
}

// Cancel ends a confirmed booking and frees its dates.
func (m *Manager) Cancel(ctx context.Context, id booking.BookingID, reason string) (*booking.Booking, error) {
	return m.transition(ctx, id, func(b *booking.Booking, now time.Time) (bool, error) {
		return true, b.Cancel(reason, now)
	})
}

func (m *Manager) MarkNoShow(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return m.transition(ctx, id, func(b *booking.Booking, now time.Time) (bool, error) {
		return true, b.MarkNoShow(now)
	})
}

func (m *Manager) CheckIn(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return m.transition(ctx, id, func(b *booking.Booking, now time.Time) (bool, error) {
		return true, b.CheckIn(now)
	})
}

func (m *Manager) CheckOut(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return m.transition(ctx, id, func(b *booking.Booking, now time.Time) (bool, error) {
		return true, b.CheckOut(now)
	})
}

// RecordBalance books a later instalment against a deposit-confirmed booking.
func (m *Manager) RecordBalance(ctx context.Context, id booking.BookingID, amountCents int64) (*booking.Booking, error) {
	return m.transition(ctx, id, func(b *booking.Booking, now time.Time) (bool, error) {
		return true, b.RecordBalance(amountCents, now)
	})
}

// transition reloads the booking under the unit lock, applies fn and persists
// the result. Bookings that stop holding dates release their block.
func (m *Manager) transition(ctx context.Context, id booking.BookingID, fn func(b *booking.Booking, now time.Time) (bool, error)) (*booking.Booking, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	b, err := m.Bookings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var result *booking.Booking
	err = m.withUnit(ctx, b.UnitID, func() error {
		b, err := m.Bookings.ByID(ctx, id)
		if err != nil {
			return err
		}
		result = b
		now := m.now()
		held := b.HoldsDates()
		changed, err := fn(b, now)
		if err != nil || !changed {
			return err
		}
		if held && !b.HoldsDates() {
			return m.persistAndRelease(ctx, b, now)
		}
		if err := m.Bookings.Save(ctx, b); err != nil {
			return err
		}
		m.publish(ctx, b.Drain()...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) cancel(ctx context.Context, b *booking.Booking, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	return m.persistAndRelease(ctx, b, m.now())
}

// persistAndRelease saves first so a failed release leaves an orphan block for
// Reconcile rather than a live booking without dates.
func (m *Manager) persistAndRelease(ctx context.Context, b *booking.Booking, now time.Time) error {
	if err := m.Bookings.Save(ctx, b); err != nil {
		return err
	}
	evs := b.Drain()
	if err := m.Index.Release(ctx, b.UnitID, string(b.ID)); err != nil && !errors.Is(err, availability.ErrBlockNotFound) {
		m.logger().ErrorContext(ctx, "release failed, block left orphaned",
			slog.String("booking_id", string(b.ID)),
			slog.String("unit_id", string(b.UnitID)),
			slog.String("kind", string(apperr.Invariant)),
			slog.Any("error", err))
	} else {
		evs = append(evs, availability.ReleasedEvent(b.UnitID, string(b.ID), now))
	}
	m.publish(ctx, evs...)
	m.logger().InfoContext(ctx, "booking released dates",
		slog.String("booking_id", string(b.ID)),
		slog.String("status", string(b.Status)),
		slog.String("reason", b.CancelReason))
	return nil
}

func (m *Manager) byKey(ctx context.Context, key, guestID string) (*booking.Booking, error) {
	if key == "" {
		return nil, nil
	}
	b, err := m.Bookings.ByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if b.GuestID != guestID {
		return nil, ErrKeyReused
	}
	return b, nil
}

// policyFor resolves the unit's own policy, then its property's default.
func (m *Manager) policyFor(ctx context.Context, unit *units.Unit) (cancellation.Policy, error) {
	id := unit.PolicyID
	if id == "" {
		prop, err := m.Catalog.Property(ctx, unit.PropertyID)
		if err != nil {
			return cancellation.Policy{}, err
		}
		id = prop.DefaultPolicyID
	}
	if id == "" || m.Policies == nil {
		return nonRefundable, nil
	}
	p, err := m.Policies.Policy(ctx, id)
	if err != nil {
		return cancellation.Policy{}, err
	}
	return p.Snapshot(), nil
}

func (m *Manager) withUnit(ctx context.Context, unitID units.UnitID, fn func() error) error {
	unlock, err := m.Locker.Lock(ctx, unitID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (m *Manager) publish(ctx context.Context, evs ...events.DomainEvent) {
	if err := outbox.RecordDomainEvents(ctx, m.Outbox, m.Encoder, evs); err != nil {
		m.logger().ErrorContext(ctx, "record events failed", slog.Any("error", err))
	}
}

func (m *Manager) archive(ctx context.Context, b *booking.Booking) {
	if m.Archive == nil {
		return
	}
	if err := m.Archive.Put(ctx, b.UnitID, b.ID, b.Price); err != nil {
		m.logger().WarnContext(ctx, "quote archive failed",
			slog.String("booking_id", string(b.ID)), slog.Any("error", err))
	}
}

func (m *Manager) ensure() error {
	if m.Bookings == nil || m.Index == nil || m.Locker == nil || m.Quoter == nil {
		return ErrManagerNotReady
	}
	return nil
}

func (m *Manager) holdWindow() time.Duration {
	if m.HoldWindow > 0 {
		return m.HoldWindow
	}
	return defaultHoldWindow
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Manager) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
