package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/app/policies"
)

func TestSandboxGateway_ReplaysByKey(t *testing.T) {
	g := NewSandboxGateway()
	ctx := context.Background()

	first, err := g.Charge(ctx, policies.ChargeRequest{BookingID: "b-1", AmountCents: 34500, Currency: "USD", IdempotencyKey: "charge-b-1"})
	require.NoError(t, err)
	again, err := g.Charge(ctx, policies.ChargeRequest{BookingID: "b-1", AmountCents: 34500, Currency: "USD", IdempotencyKey: "charge-b-1"})
	require.NoError(t, err)
	assert.True(t, first.Verified)
	assert.Equal(t, first.ProviderRef, again.ProviderRef)

	_, err = g.Charge(ctx, policies.ChargeRequest{IdempotencyKey: "charge-b-2", PaymentToken: TokenDecline})
	assert.ErrorIs(t, err, policies.ErrPaymentDeclined)

	r1, err := g.Refund(ctx, policies.RefundRequest{AmountCents: 100, ProviderRef: first.ProviderRef, IdempotencyKey: "rf-1"})
	require.NoError(t, err)
	r2, err := g.Refund(ctx, policies.RefundRequest{AmountCents: 100, ProviderRef: first.ProviderRef, IdempotencyKey: "rf-1"})
	require.NoError(t, err)
	assert.Equal(t, r1.ProviderRef, r2.ProviderRef)
	assert.Equal(t, 5, g.Calls())
}

type flakyGateway struct {
	err   error
	calls int
}

func (f *flakyGateway) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeResult, error) {
	f.calls++
	if f.err != nil {
		return policies.ChargeResult{}, f.err
	}
	return policies.ChargeResult{Verified: true, ProviderRef: "ch_1", AmountCents: req.AmountCents}, nil
}

func (f *flakyGateway) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	f.calls++
	if f.err != nil {
		return policies.RefundResult{}, f.err
	}
	return policies.RefundResult{Completed: true, ProviderRef: "re_1"}, nil
}

func TestBreakerGateway_OpensAfterFailures(t *testing.T) {
	next := &flakyGateway{err: errors.New("connection reset")}
	g := NewBreakerGateway(next, BreakerSettings{MaxFailures: 3, OpenTimeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := g.Charge(ctx, policies.ChargeRequest{AmountCents: 1})
		assert.NotErrorIs(t, err, policies.ErrGatewayDown)
	}
	_, err := g.Charge(ctx, policies.ChargeRequest{AmountCents: 1})
	assert.ErrorIs(t, err, policies.ErrGatewayDown)
	assert.Equal(t, 3, next.calls)

	next.err = nil
	_, err = g.Refund(ctx, policies.RefundRequest{AmountCents: 1})
	require.NoError(t, err, "refunds use their own breaker")
}

func TestBreakerGateway_DeclinesDoNotTrip(t *testing.T) {
	next := &flakyGateway{err: policies.ErrPaymentDeclined}
	g := NewBreakerGateway(next, BreakerSettings{MaxFailures: 1, OpenTimeout: time.Hour}, nil)
	for i := 0; i < 3; i++ {
		_, err := g.Charge(context.Background(), policies.ChargeRequest{AmountCents: 1})
		assert.ErrorIs(t, err, policies.ErrPaymentDeclined)
	}
	assert.Equal(t, 3, next.calls)
}

func TestBreakerGateway_CallTimeout(t *testing.T) {
	g := NewBreakerGateway(blockingGateway{}, BreakerSettings{CallTimeout: 10 * time.Millisecond}, nil)
	_, err := g.Charge(context.Background(), policies.ChargeRequest{AmountCents: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingGateway struct{}

func (blockingGateway) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeResult, error) {
	<-ctx.Done()
	return policies.ChargeResult{}, ctx.Err()
}

func (blockingGateway) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	<-ctx.Done()
	return policies.RefundResult{}, ctx.Err()
}
