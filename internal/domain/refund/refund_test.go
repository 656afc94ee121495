package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/apperr"
)

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func paidBooking(total int64, checkInIn time.Duration) *booking.Booking {
	return &booking.Booking{
		ID:            "b-1",
		GuestID:       "guest-1",
		Status:        booking.StatusConfirmed,
		PaymentStatus: booking.PaymentPaid,
		AmountPaid:    total,
		CheckInAt:     now.Add(checkInIn),
		Price:         pricing.FrozenQuote{Breakdown: pricing.Breakdown{Currency: "USD", TotalCents: total}},
		Policy: cancellation.Policy{ID: "moderate", Tiers: []cancellation.Tier{
			{MinHoursBeforeCheckIn: 168, RefundPercent: 100},
			{MinHoursBeforeCheckIn: 72, RefundPercent: 50},
			{MinHoursBeforeCheckIn: 0, RefundPercent: 0},
		}},
	}
}

func TestCalculate_HalfRefundAtHundredHours(t *testing.T) {
	b := paidBooking(34950, 100*time.Hour)
	out := Calculator{}.Calculate(b, 34950, now)

	assert.Equal(t, 50, out.Percent)
	assert.Equal(t, int64(17475), out.CalculatedCents)
	assert.Equal(t, int64(17475), out.OutstandingCents)
	assert.InDelta(t, 100.0, out.HoursUntilCheckIn, 0.001)
	assert.Equal(t, "USD", out.Currency)
}

func TestCalculate_RoundsHalfUp(t *testing.T) {
	b := paidBooking(34951, 100*time.Hour)
	out := Calculator{}.Calculate(b, 34951, now)
	assert.Equal(t, int64(17476), out.CalculatedCents)
}

func TestCalculate_AfterCheckInIsZero(t *testing.T) {
	b := paidBooking(34500, -2*time.Hour)
	out := Calculator{}.Calculate(b, 34500, now)
	assert.Equal(t, 0, out.Percent)
	assert.Equal(t, int64(0), out.CalculatedCents)
	assert.Equal(t, int64(34500), out.OutstandingCents)
}

func TestCalculate_MonotonicInNotice(t *testing.T) {
	b := paidBooking(34500, 0)
	var prev int64 = -1
	for hours := 0; hours <= 400; hours += 4 {
		cancelAt := b.CheckInAt.Add(-time.Duration(hours) * time.Hour)
		out := Calculator{}.Calculate(b, 34500, cancelAt)
		assert.GreaterOrEqual(t, out.CalculatedCents, prev)
		assert.LessOrEqual(t, out.CalculatedCents, int64(34500))
		prev = out.CalculatedCents
	}
}

func TestCalculate_CappedAtPaid(t *testing.T) {
	b := paidBooking(34500, 500*time.Hour)
	out := Calculator{}.Calculate(b, 10000, now)
	assert.Equal(t, int64(10000), out.CalculatedCents)
	assert.Equal(t, int64(24500), out.OutstandingCents)
}

func newRequest(t *testing.T, requested int64) *Request {
	t.Helper()
	b := paidBooking(34950, 100*time.Hour)
	out := Calculator{}.Calculate(b, b.AmountPaid, now)
	r, err := NewRequest(NewRequestParams{ID: "r-1", Booking: b, Outcome: out, RequestedCents: requested, Now: now})
	require.NoError(t, err)
	return r
}

func TestRequest_OverrideRequiredAboveCalculated(t *testing.T) {
	r := newRequest(t, 34950)
	assert.Equal(t, int64(17475), r.CalculatedCents)

	err := r.Approve("op-1", 20000, false, "", now)
	assert.ErrorIs(t, err, ErrOverrideRequired)
	assert.True(t, apperr.IsKind(err, apperr.Validation))
	assert.Equal(t, StatusRequested, r.Status)

	require.NoError(t, r.Approve("op-1", 20000, true, "goodwill", now))
	assert.True(t, r.Override)
	assert.Equal(t, StatusApproved, r.Status)
	ev := r.PendingEvents()[len(r.PendingEvents())-1].(Approved)
	assert.True(t, ev.Exception)
}

func TestRequest_ApproveWithinCalculatedIsNotException(t *testing.T) {
	r := newRequest(t, 0)
	assert.Equal(t, int64(17475), r.RequestedCents)
	require.NoError(t, r.Approve("op-1", 17475, true, "", now))
	assert.False(t, r.Override)
}

func TestRequest_Lifecycle(t *testing.T) {
	r := newRequest(t, 0)
	assert.ErrorIs(t, r.MarkPaid("ref", now), ErrInvalidTransition)
	require.NoError(t, r.Approve("op-1", 17475, false, "", now))
	require.NoError(t, r.MarkPaid("refund-1", now))
	require.NoError(t, r.MarkPaid("refund-1", now))
	assert.Equal(t, StatusPaid, r.Status)
	assert.False(t, r.Open())
	assert.ErrorIs(t, r.Withdraw(now), ErrInvalidTransition)

	rejected := newRequest(t, 0)
	require.NoError(t, rejected.Reject("op-1", "outside policy", now))
	assert.ErrorIs(t, rejected.Approve("op-1", 1, false, "", now), ErrInvalidTransition)

	withdrawn := newRequest(t, 0)
	require.NoError(t, withdrawn.Withdraw(now))
	assert.Equal(t, StatusWithdrawn, withdrawn.Status)
}

func TestNewRequest_Validation(t *testing.T) {
	b := paidBooking(34950, 100*time.Hour)
	out := Calculator{}.Calculate(b, b.AmountPaid, now)

	_, err := NewRequest(NewRequestParams{ID: "r", Booking: b, Outcome: out, RequestedCents: 40000, Now: now})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	unpaid := paidBooking(34950, 100*time.Hour)
	unpaid.AmountPaid = 0
	_, err = NewRequest(NewRequestParams{ID: "r", Booking: unpaid, Outcome: out, Now: now})
	assert.ErrorIs(t, err, ErrNotRefundable)
}
