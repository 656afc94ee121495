package refunds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/app/policies"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/infra/storage/memory"
)

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu      sync.Mutex
	fail    error
	refunds []policies.RefundRequest
}

func (g *fakeGateway) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeResult, error) {
	return policies.ChargeResult{}, errors.New("not used")
}

func (g *fakeGateway) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return policies.RefundResult{}, g.fail
	}
	g.refunds = append(g.refunds, req)
	return policies.RefundResult{Completed: true, ProviderRef: "gw-" + req.IdempotencyKey}, nil
}

type fixture struct {
	svc      *Service
	gateway  *fakeGateway
	bookings *memory.BookingRepository
	refunds  *memory.RefundRepository
	outbox   *memory.Outbox
}

func newFixture(t *testing.T, total int64, checkInIn time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		gateway:  &fakeGateway{},
		bookings: memory.NewBookingRepository(),
		refunds:  memory.NewRefundRepository(),
		outbox:   memory.NewOutbox(nil, nil),
	}
	b := &booking.Booking{
		ID:            "bk-1",
		UnitID:        "unit-1",
		GuestID:       "guest-1",
		Status:        booking.StatusCancelled,
		PaymentStatus: booking.PaymentPaid,
		PaymentRef:    "pay-1",
		AmountPaid:    total,
		CheckInAt:     now.Add(checkInIn),
		Price:         pricing.FrozenQuote{Breakdown: pricing.Breakdown{Currency: "USD", TotalCents: total}},
		Policy: cancellation.Policy{ID: "moderate", Tiers: []cancellation.Tier{
			{MinHoursBeforeCheckIn: 168, RefundPercent: 100},
			{MinHoursBeforeCheckIn: 72, RefundPercent: 50},
			{MinHoursBeforeCheckIn: 0, RefundPercent: 0},
		}},
	}
	require.NoError(t, f.bookings.Save(context.Background(), b))
	seq := 0
	f.svc = &Service{
		Bookings: f.bookings,
		Refunds:  f.refunds,
		Locker:   memory.NewUnitLocker(),
		Gateway:  f.gateway,
		Outbox:   f.outbox,
		Now:      func() time.Time { return now },
		NewID: func() string {
			seq++
			return fmt.Sprintf("rf-%d", seq)
		},
	}
	return f
}

func TestPreview_HalfRefund(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	out, err := f.svc.Preview(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, 50, out.Percent)
	assert.Equal(t, int64(17475), out.CalculatedCents)
}

func TestRequestApprovePayout(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	ctx := context.Background()

	r, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(17475), r.RequestedCents)

	_, err = f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	assert.ErrorIs(t, err, ErrRequestOpen)

	_, err = f.svc.Approve(ctx, ApproveInput{RequestID: r.ID, ReviewerID: "op-1"})
	require.NoError(t, err)

	paid, err := f.svc.Payout(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusPaid, paid.Status)
	assert.Equal(t, "gw-"+r.ID, paid.ProviderRef)

	_, err = f.svc.Payout(ctx, r.ID)
	require.NoError(t, err)

	require.Len(t, f.gateway.refunds, 1)
	assert.Equal(t, r.ID, f.gateway.refunds[0].IdempotencyKey)
	assert.Equal(t, "pay-1", f.gateway.refunds[0].ProviderRef)

	b, err := f.bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(17475), b.Refunded)
	assert.Equal(t, booking.PaymentPartiallyRefunded, b.PaymentStatus)

	require.NoError(t, f.outbox.Flush(ctx))
	assert.Equal(t, []string{"refund.requested", "refund.approved", "refund.completed"}, f.outbox.Flushed())
}

func TestRequest_OtherGuestForbidden(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	_, err := f.svc.Request(context.Background(), RequestInput{BookingID: "bk-1", RequesterID: "guest-2"})
	assert.ErrorIs(t, err, ErrNotBookingGuest)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	_, err = f.svc.Request(context.Background(), RequestInput{BookingID: "bk-1", RequesterID: "op-1", Operator: true})
	assert.NoError(t, err)
}

func TestApprove_AboveCalculatedNeedsOverride(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	ctx := context.Background()
	r, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1", RequestedCents: 34950})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, ApproveInput{RequestID: r.ID, ReviewerID: "op-1"})
	assert.ErrorIs(t, err, refund.ErrOverrideRequired)

	approved, err := f.svc.Approve(ctx, ApproveInput{RequestID: r.ID, ReviewerID: "op-1", Override: true, Note: "goodwill"})
	require.NoError(t, err)
	assert.True(t, approved.Override)
	assert.Equal(t, int64(34950), approved.ApprovedCents)
}

func TestPayout_GatewayFailureKeepsRequestApproved(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	ctx := context.Background()
	r, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, ApproveInput{RequestID: r.ID, ReviewerID: "op-1"})
	require.NoError(t, err)

	f.gateway.fail = policies.ErrGatewayDown
	_, err = f.svc.Payout(ctx, r.ID)
	assert.ErrorIs(t, err, ErrPayoutIncomplete)
	assert.ErrorIs(t, err, policies.ErrGatewayDown)

	stored, err := f.refunds.ByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusApproved, stored.Status)

	f.gateway.fail = nil
	_, err = f.svc.Payout(ctx, r.ID)
	require.NoError(t, err)
	b, err := f.bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(17475), b.Refunded)
}

func TestPayout_CompletesBookingAfterCrash(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	ctx := context.Background()
	r, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, ApproveInput{RequestID: r.ID, ReviewerID: "op-1"})
	require.NoError(t, err)

	// gateway paid and request stored, booking never updated
	stored, err := f.refunds.ByID(ctx, r.ID)
	require.NoError(t, err)
	require.NoError(t, stored.MarkPaid("gw-earlier", now))
	require.NoError(t, f.refunds.Save(ctx, stored))

	_, err = f.svc.Payout(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, f.gateway.refunds)

	b, err := f.bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(17475), b.Refunded)
	assert.Equal(t, []string{r.ID}, b.RefundIDs)
}

func TestOpenForCancellation(t *testing.T) {
	t.Run("files calculated refund", func(t *testing.T) {
		f := newFixture(t, 34500, 200*time.Hour)
		b, err := f.bookings.ByID(context.Background(), "bk-1")
		require.NoError(t, err)
		r, err := f.svc.OpenForCancellation(context.Background(), b)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, int64(34500), r.RequestedCents)
		assert.Equal(t, ReasonCancellation, r.Reason)
	})

	t.Run("nothing inside the last tier", func(t *testing.T) {
		f := newFixture(t, 34500, 10*time.Hour)
		b, err := f.bookings.ByID(context.Background(), "bk-1")
		require.NoError(t, err)
		r, err := f.svc.OpenForCancellation(context.Background(), b)
		require.NoError(t, err)
		assert.Nil(t, r)
	})
}

func TestRejectAndWithdraw(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	ctx := context.Background()
	r, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, r.ID, "guest-2")
	assert.ErrorIs(t, err, ErrNotBookingGuest)
	withdrawn, err := f.svc.Withdraw(ctx, r.ID, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, refund.StatusWithdrawn, withdrawn.Status)

	second, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	require.NoError(t, err)
	rejected, err := f.svc.Reject(ctx, second.ID, "op-1", "outside policy")
	require.NoError(t, err)
	assert.Equal(t, refund.StatusRejected, rejected.Status)

	_, err = f.svc.Payout(ctx, second.ID)
	assert.ErrorIs(t, err, refund.ErrInvalidTransition)

	list, err := f.svc.ListForBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

type slowRefunds struct {
	*memory.RefundRepository
	delay time.Duration
}

func (r slowRefunds) ByBooking(ctx context.Context, id booking.BookingID) ([]*refund.Request, error) {
	list, err := r.RefundRepository.ByBooking(ctx, id)
	time.Sleep(r.delay)
	return list, err
}

func TestRequest_ConcurrentOnlyOneOpens(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	f.svc.Refunds = slowRefunds{RefundRepository: f.refunds, delay: 5 * time.Millisecond}
	var seqMu sync.Mutex
	seq := 0
	f.svc.NewID = func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("rf-%d", seq)
	}
	ctx := context.Background()

	const n = 6
	errs := make([]error, n)
	opened := make([]*refund.Request, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opened[i], errs[i] = f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
		}(i)
	}
	wg.Wait()

	var winner *refund.Request
	for i, err := range errs {
		if err == nil {
			require.Nil(t, winner, "more than one request opened")
			winner = opened[i]
			continue
		}
		assert.ErrorIs(t, err, ErrRequestOpen)
		assert.True(t, apperr.IsKind(err, apperr.Conflict))
	}
	require.NotNil(t, winner)

	list, err := f.refunds.ByBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.Approve(ctx, ApproveInput{RequestID: winner.ID, ReviewerID: "op-1"})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Payout(ctx, winner.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.gateway.refunds, 1)
	b, err := f.bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(17475), b.Refunded)
	assert.Equal(t, []string{winner.ID}, b.RefundIDs)
}

func TestPayout_StaysWithinPolicyAcrossRequests(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	ctx := context.Background()
	first, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, ApproveInput{RequestID: first.ID, ReviewerID: "op-1"})
	require.NoError(t, err)
	_, err = f.svc.Payout(ctx, first.ID)
	require.NoError(t, err)

	second, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, ApproveInput{RequestID: second.ID, ReviewerID: "op-1"})
	require.NoError(t, err)
	_, err = f.svc.Payout(ctx, second.ID)
	assert.ErrorIs(t, err, ErrPayoutExceedsPolicy)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))
	assert.Len(t, f.gateway.refunds, 1)

	stored, err := f.refunds.ByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusApproved, stored.Status)
	b, err := f.bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(17475), b.Refunded)
}

func TestPayout_OverrideNeverExceedsPaid(t *testing.T) {
	f := newFixture(t, 34950, 100*time.Hour)
	ctx := context.Background()
	first, err := f.svc.Request(ctx, RequestInput{BookingID: "bk-1", RequesterID: "guest-1"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, ApproveInput{RequestID: first.ID, ReviewerID: "op-1"})
	require.NoError(t, err)
	_, err = f.svc.Payout(ctx, first.ID)
	require.NoError(t, err)

	rogue := &refund.Request{
		ID: "rf-rogue", BookingID: "bk-1", GuestID: "guest-1", Currency: "USD",
		Status: refund.StatusApproved, ApprovedCents: 20000, Override: true, CreatedAt: now,
	}
	require.NoError(t, f.refunds.Save(ctx, rogue))
	_, err = f.svc.Payout(ctx, rogue.ID)
	assert.ErrorIs(t, err, ErrPayoutExceedsPaid)
	assert.Len(t, f.gateway.refunds, 1)

	rest := &refund.Request{
		ID: "rf-rest", BookingID: "bk-1", GuestID: "guest-1", Currency: "USD",
		Status: refund.StatusApproved, ApprovedCents: 17475, Override: true, CreatedAt: now,
	}
	rogue.Status = refund.StatusRejected
	require.NoError(t, f.refunds.Save(ctx, rogue))
	require.NoError(t, f.refunds.Save(ctx, rest))
	_, err = f.svc.Payout(ctx, rest.ID)
	require.NoError(t, err)

	b, err := f.bookings.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(34950), b.Refunded)
}
