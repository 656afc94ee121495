package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/app/policies"
	"roomstay/internal/app/services/lifecycle"
	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
	"roomstay/internal/infra/storage/memory"
)

type fakeGateway struct {
	mu         sync.Mutex
	chargeErrs []error
	declined   bool
	charges    []policies.ChargeRequest
	refunds    []policies.RefundRequest
}

func (g *fakeGateway) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if len(g.chargeErrs) > 0 {
		err := g.chargeErrs[0]
		g.chargeErrs = g.chargeErrs[1:]
		if err != nil {
			return policies.ChargeResult{}, err
		}
	}
	if g.declined {
		return policies.ChargeResult{Verified: false}, nil
	}
	return policies.ChargeResult{Verified: true, ProviderRef: "pay-" + req.BookingID, AmountCents: req.AmountCents}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, req)
	return policies.RefundResult{Completed: true, ProviderRef: "rf-" + req.IdempotencyKey}, nil
}

type fixture struct {
	orch    *Orchestrator
	gateway *fakeGateway
	index   availability.Index
	now     time.Time
	slept   []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{gateway: &fakeGateway{}, now: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	catalog := memory.NewCatalog()
	prop, err := units.NewProperty(units.CreatePropertyParams{ID: "prop-1", OwnerID: "owner-1", Currency: "USD", TaxRateBps: 1500, Now: f.now})
	require.NoError(t, err)
	require.NoError(t, catalog.SaveProperty(ctx, prop))
	unit, err := units.NewUnit(units.CreateUnitParams{ID: "unit-1", Property: prop, BaseRateCents: 10000, MaxGuests: 4, Now: f.now})
	require.NoError(t, err)
	require.NoError(t, catalog.SaveUnit(ctx, unit))

	bookings := memory.NewBookingRepository()
	f.index = availability.NewCalendarIndex(memory.NewCalendarRepository())
	quoter := &pricing.Quoter{Catalog: catalog, Engine: pricing.NewEngine(nil)}
	manager := &lifecycle.Manager{
		Catalog:    catalog,
		Bookings:   bookings,
		Index:      f.index,
		Locker:     memory.NewUnitLocker(),
		Quoter:     quoter,
		Outbox:     memory.NewOutbox(nil, nil),
		HoldWindow: 15 * time.Minute,
		Now:        clock,
		NewID:      func() string { return "bk-1" },
	}
	f.orch = &Orchestrator{
		Lifecycle:   manager,
		Bookings:    bookings,
		Quoter:      quoter,
		Gateway:     f.gateway,
		Backoff:     []time.Duration{10 * time.Millisecond, 20 * time.Millisecond},
		MaxAttempts: 3,
		Now:         clock,
		Sleep: func(ctx context.Context, d time.Duration) error {
			f.slept = append(f.slept, d)
			return nil
		},
	}
	return f
}

func (f *fixture) hold(t *testing.T) *booking.Booking {
	t.Helper()
	b, err := f.orch.Hold(context.Background(), lifecycle.HoldInput{
		IdempotencyKey: "k-1",
		GuestID:        "guest-1",
		UnitID:         "unit-1",
		Stay:           daterange.MustParse("2025-07-10", "2025-07-13"),
		Guests:         booking.Guests{Adults: 2},
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) free(t *testing.T) bool {
	t.Helper()
	ok, err := f.index.IsFree(context.Background(), "unit-1", daterange.MustParse("2025-07-10", "2025-07-13"))
	require.NoError(t, err)
	return ok
}

func TestQuote_HasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	q, err := f.orch.Quote(context.Background(), QuoteInput{
		UnitID: "unit-1", Stay: daterange.MustParse("2025-07-10", "2025-07-13"), Guests: booking.Guests{Adults: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), q.RoomCents)
	assert.Equal(t, int64(4500), q.TaxCents)
	assert.Equal(t, int64(34500), q.TotalCents)
	assert.True(t, f.free(t))
}

func TestPay_Confirms(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)

	got, err := f.orch.Pay(context.Background(), PayInput{BookingID: b.ID, PaymentToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, got.Status)
	assert.Equal(t, "pay-bk-1", got.PaymentRef)
	require.Len(t, f.gateway.charges, 1)
	assert.Equal(t, int64(34500), f.gateway.charges[0].AmountCents)
	assert.Equal(t, "charge-bk-1", f.gateway.charges[0].IdempotencyKey)

	again, err := f.orch.Pay(context.Background(), PayInput{BookingID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, again.Status)
	assert.Len(t, f.gateway.charges, 1)
}

func TestPay_RetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)
	f.gateway.chargeErrs = []error{errors.New("connection reset")}

	got, err := f.orch.Pay(context.Background(), PayInput{BookingID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, got.Status)
	assert.Len(t, f.gateway.charges, 2)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, f.slept)
}

func TestPay_ExhaustedRetriesReleaseHold(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)
	boom := errors.New("gateway timeout")
	f.gateway.chargeErrs = []error{boom, boom, boom}

	_, err := f.orch.Pay(context.Background(), PayInput{BookingID: b.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, boom)
	assert.True(t, apperr.IsKind(err, apperr.Upstream))
	assert.Len(t, f.gateway.charges, 3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, f.slept)

	got, err := f.orch.Bookings.ByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, booking.ReasonPaymentFailed, got.CancelReason)
	assert.True(t, f.free(t))
}

func TestPay_DeclinedIsNotRetried(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)
	f.gateway.declined = true

	_, err := f.orch.Pay(context.Background(), PayInput{BookingID: b.ID})
	assert.ErrorIs(t, err, policies.ErrPaymentDeclined)
	assert.Len(t, f.gateway.charges, 1)
	assert.True(t, f.free(t))
}

func TestPay_ExpiredHoldIsNotCharged(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)
	f.now = f.now.Add(20 * time.Minute)

	_, err := f.orch.Pay(context.Background(), PayInput{BookingID: b.ID})
	assert.ErrorIs(t, err, lifecycle.ErrHoldExpired)
	assert.Empty(t, f.gateway.charges)
	assert.True(t, f.free(t))
}

func TestHandlePaymentResult_LatePaymentIsVoided(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)
	f.now = f.now.Add(20 * time.Minute)
	n, err := f.orch.Lifecycle.ExpireHolds(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := f.orch.HandlePaymentResult(context.Background(), PaymentEvent{
		EventID: "evt-1", BookingID: b.ID, Status: PaymentSucceeded, ProviderRef: "pay-late", AmountCents: 34500, Currency: "USD",
	})
	assert.ErrorIs(t, err, lifecycle.ErrHoldExpired)
	require.NotNil(t, got)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	require.Len(t, f.gateway.refunds, 1)
	assert.Equal(t, "void-bk-1", f.gateway.refunds[0].IdempotencyKey)
	assert.Equal(t, int64(34500), f.gateway.refunds[0].AmountCents)
	assert.Equal(t, "pay-late", f.gateway.refunds[0].ProviderRef)
}

func TestHandlePaymentResult_PaymentAfterTimedOutChargeIsVoided(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)
	f.gateway.chargeErrs = []error{context.DeadlineExceeded, context.DeadlineExceeded, context.DeadlineExceeded}

	_, err := f.orch.Pay(context.Background(), PayInput{BookingID: b.ID})
	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.Len(t, f.gateway.charges, 3)

	got, err := f.orch.HandlePaymentResult(context.Background(), PaymentEvent{
		EventID: "evt-1", BookingID: b.ID, Status: PaymentSucceeded, ProviderRef: "pay-late", AmountCents: 34500, Currency: "USD",
	})
	assert.ErrorIs(t, err, lifecycle.ErrBookingClosed)
	require.NotNil(t, got)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, booking.ReasonPaymentFailed, got.CancelReason)
	assert.Zero(t, got.AmountPaid)
	require.Len(t, f.gateway.refunds, 1)
	assert.Equal(t, "void-bk-1", f.gateway.refunds[0].IdempotencyKey)
	assert.Equal(t, int64(34500), f.gateway.refunds[0].AmountCents)
	assert.Equal(t, "pay-late", f.gateway.refunds[0].ProviderRef)
	assert.True(t, f.free(t))
}

func TestHandlePaymentResult_ReplayAfterCheckInIsAccepted(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)
	ev := PaymentEvent{EventID: "evt-1", BookingID: b.ID, Status: PaymentSucceeded, ProviderRef: "pay-1", AmountCents: 34500}

	_, err := f.orch.HandlePaymentResult(context.Background(), ev)
	require.NoError(t, err)
	f.now = time.Date(2025, 7, 10, 15, 0, 0, 0, time.UTC)
	_, err = f.orch.Lifecycle.CheckIn(context.Background(), b.ID)
	require.NoError(t, err)

	got, err := f.orch.HandlePaymentResult(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCheckedIn, got.Status)
	assert.Empty(t, f.gateway.refunds)
}

func TestHandlePaymentResult_Redelivery(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)
	ev := PaymentEvent{EventID: "evt-1", BookingID: b.ID, Status: PaymentSucceeded, ProviderRef: "pay-1", AmountCents: 34500}

	first, err := f.orch.HandlePaymentResult(context.Background(), ev)
	require.NoError(t, err)
	second, err := f.orch.HandlePaymentResult(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, first.Status)
	assert.Equal(t, first.Version, second.Version)
	assert.Empty(t, f.gateway.refunds)

	ev.ProviderRef = "pay-2"
	_, err = f.orch.HandlePaymentResult(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, f.gateway.refunds, 1)
	assert.Equal(t, "dup-pay-2", f.gateway.refunds[0].IdempotencyKey)
}

func TestHandlePaymentResult_FailureAbortsHold(t *testing.T) {
	f := newFixture(t)
	b := f.hold(t)

	got, err := f.orch.HandlePaymentResult(context.Background(), PaymentEvent{BookingID: b.ID, Status: PaymentFailed})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.True(t, f.free(t))

	_, err = f.orch.HandlePaymentResult(context.Background(), PaymentEvent{BookingID: b.ID, Status: "weird"})
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}
