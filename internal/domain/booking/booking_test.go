package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func newHold(t *testing.T) *Booking {
	t.Helper()
	unit := &units.Unit{ID: "unit-1", PropertyID: "prop-1", CheckInHour: 15}
	stay := daterange.MustParse("2025-07-10", "2025-07-13")
	price := pricing.FrozenQuote{Breakdown: pricing.Breakdown{UnitID: "unit-1", Currency: "USD", CheckIn: "2025-07-10", CheckOut: "2025-07-13", TotalCents: 34500}}
	b, err := NewHold(HoldParams{
		ID: "b-1", Unit: unit, GuestID: "guest-1", Stay: stay, Guests: Guests{Adults: 2},
		Price: price, HoldWindow: 15 * time.Minute, Now: now,
	})
	require.NoError(t, err)
	return b
}

func TestNewHold(t *testing.T) {
	b := newHold(t)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, now.Add(15*time.Minute), b.HoldExpiresAt)
	assert.Equal(t, time.Date(2025, 7, 10, 15, 0, 0, 0, time.UTC), b.CheckInAt)
	assert.Equal(t, 1, b.Rooms)
	require.Len(t, b.PendingEvents(), 1)
	assert.Equal(t, "booking.held", b.PendingEvents()[0].EventName())
}

func TestNewHold_Rejects(t *testing.T) {
	unit := &units.Unit{ID: "unit-1"}
	price := pricing.FrozenQuote{Breakdown: pricing.Breakdown{UnitID: "unit-1", CheckIn: "2025-07-10", CheckOut: "2025-07-13"}}
	base := HoldParams{ID: "b", Unit: unit, GuestID: "g", Stay: daterange.MustParse("2025-07-10", "2025-07-13"), Guests: Guests{Adults: 1}, Price: price, Now: now}

	p := base
	p.Guests = Guests{Children: 2}
	_, err := NewHold(p)
	assert.ErrorIs(t, err, ErrInvalidGuests)

	p = base
	p.Stay = daterange.MustParse("2025-06-10", "2025-06-13")
	_, err = NewHold(p)
	assert.ErrorIs(t, err, ErrCheckInInPast)

	p = base
	p.Stay = daterange.MustParse("2025-07-10", "2025-07-14")
	_, err = NewHold(p)
	assert.ErrorIs(t, err, ErrQuoteMismatch)
}

func TestConfirm_Idempotent(t *testing.T) {
	b := newHold(t)
	b.ClearEvents()

	require.NoError(t, b.Confirm("pay-1", 34500, now))
	require.NoError(t, b.Confirm("pay-1", 34500, now.Add(time.Minute)))

	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, PaymentPaid, b.PaymentStatus)
	assert.Len(t, b.PendingEvents(), 1)
}

func TestConfirm_ReplayDuringStay(t *testing.T) {
	b := newHold(t)
	require.NoError(t, b.Confirm("pay-1", 34500, now))
	require.NoError(t, b.CheckIn(now))
	b.ClearEvents()

	require.NoError(t, b.Confirm("pay-1", 34500, now))
	assert.Equal(t, StatusCheckedIn, b.Status)
	assert.Empty(t, b.PendingEvents())
	assert.ErrorIs(t, b.Confirm("pay-2", 34500, now), ErrInvalidTransition)

	require.NoError(t, b.CheckOut(now))
	require.NoError(t, b.Confirm("pay-1", 34500, now))
	assert.Equal(t, StatusCheckedOut, b.Status)
}

func TestConfirm_ShortPayment(t *testing.T) {
	b := newHold(t)
	assert.ErrorIs(t, b.Confirm("pay-1", 100, now), ErrAmountMismatch)
	assert.Equal(t, StatusPending, b.Status)
}

func TestTransitions(t *testing.T) {
	t.Run("abort pending then abort again", func(t *testing.T) {
		b := newHold(t)
		require.NoError(t, b.Abort(ReasonPaymentFailed, now))
		require.NoError(t, b.Abort(ReasonPaymentFailed, now))
		assert.Equal(t, StatusCancelled, b.Status)
		assert.False(t, b.HoldsDates())
	})

	t.Run("confirm after cancel refused", func(t *testing.T) {
		b := newHold(t)
		require.NoError(t, b.Abort(ReasonHoldExpired, now))
		err := b.Confirm("pay-1", 34500, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, StatusCancelled, te.From)
	})

	t.Run("stay lifecycle keeps dates", func(t *testing.T) {
		b := newHold(t)
		require.NoError(t, b.Confirm("pay-1", 34500, now))
		require.NoError(t, b.CheckIn(now))
		assert.True(t, b.HoldsDates())
		assert.ErrorIs(t, b.Cancel(ReasonGuestRequest, now), ErrInvalidTransition)
		require.NoError(t, b.CheckOut(now))
		assert.True(t, b.HoldsDates())
		assert.ErrorIs(t, b.MarkNoShow(now), ErrInvalidTransition)
	})

	t.Run("no show releases", func(t *testing.T) {
		b := newHold(t)
		require.NoError(t, b.Confirm("pay-1", 34500, now))
		require.NoError(t, b.MarkNoShow(now))
		assert.False(t, b.HoldsDates())
	})

	t.Run("cancel pending refused", func(t *testing.T) {
		b := newHold(t)
		assert.ErrorIs(t, b.Cancel(ReasonGuestRequest, now), ErrInvalidTransition)
	})

	t.Run("check in before confirm refused", func(t *testing.T) {
		b := newHold(t)
		assert.ErrorIs(t, b.CheckIn(now), ErrInvalidTransition)
	})
}

func TestHoldExpired(t *testing.T) {
	b := newHold(t)
	assert.False(t, b.HoldExpired(now.Add(14*time.Minute)))
	assert.True(t, b.HoldExpired(now.Add(15*time.Minute)))
	require.NoError(t, b.Confirm("pay-1", 34500, now))
	assert.False(t, b.HoldExpired(now.Add(time.Hour)))
}

func TestApplyRefund(t *testing.T) {
	b := newHold(t)
	require.NoError(t, b.Confirm("pay-1", 34500, now))

	require.NoError(t, b.ApplyRefund("r-1", 17475, now))
	assert.Equal(t, PaymentPartiallyRefunded, b.PaymentStatus)
	require.NoError(t, b.ApplyRefund("r-1", 17475, now))
	assert.Equal(t, int64(17475), b.Refunded)
	require.NoError(t, b.ApplyRefund("r-2", 17025, now))
	assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	assert.ErrorIs(t, b.ApplyRefund("r-3", 1, now), ErrRefundExceedsPaid)
}

func TestConfirm_Deposit(t *testing.T) {
	unit := &units.Unit{ID: "unit-1", CheckInHour: 15, DepositPercent: 30}
	price := pricing.FrozenQuote{Breakdown: pricing.Breakdown{UnitID: "unit-1", Currency: "USD", CheckIn: "2025-07-10", CheckOut: "2025-07-13", TotalCents: 34500}}
	b, err := NewHold(HoldParams{
		ID: "b-2", Unit: unit, GuestID: "guest-1", Stay: daterange.MustParse("2025-07-10", "2025-07-13"),
		Guests: Guests{Adults: 1}, Price: price, HoldWindow: time.Minute, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10350), b.DueCents)

	assert.ErrorIs(t, b.Confirm("pay-1", 10000, now), ErrAmountMismatch)
	require.NoError(t, b.Confirm("pay-1", 10350, now))
	assert.Equal(t, PaymentPartiallyPaid, b.PaymentStatus)

	require.NoError(t, b.RecordBalance(24150, now))
	assert.Equal(t, PaymentPaid, b.PaymentStatus)
	assert.ErrorIs(t, b.RecordBalance(1, now), ErrAmountMismatch)
}
