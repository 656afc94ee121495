package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"roomstay/internal/app/policies"
)

type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
	CallTimeout time.Duration
}

// BreakerGateway guards a gateway with a circuit breaker. While the breaker is
// open calls fail fast with policies.ErrGatewayDown. Declines are business
// outcomes and never trip it.
type BreakerGateway struct {
	next    policies.PaymentGateway
	charges *gobreaker.CircuitBreaker[policies.ChargeResult]
	refunds *gobreaker.CircuitBreaker[policies.RefundResult]
	timeout time.Duration
}

func NewBreakerGateway(next policies.PaymentGateway, s BreakerSettings, logger *slog.Logger) *BreakerGateway {
	if s.Name == "" {
		s.Name = "payments"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	settings := func(op string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        s.Name + "." + op,
			MaxRequests: 1,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.MaxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, policies.ErrPaymentDeclined)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if logger != nil {
					logger.Warn("payment breaker state changed", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
				}
			},
		}
	}
	return &BreakerGateway{
		next:    next,
		charges: gobreaker.NewCircuitBreaker[policies.ChargeResult](settings("charge")),
		refunds: gobreaker.NewCircuitBreaker[policies.RefundResult](settings("refund")),
		timeout: s.CallTimeout,
	}
}

func (g *BreakerGateway) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeResult, error) {
	res, err := g.charges.Execute(func() (policies.ChargeResult, error) {
		callCtx, cancel := g.callContext(ctx)
		defer cancel()
		return g.next.Charge(callCtx, req)
	})
	return res, translate(err)
}

func (g *BreakerGateway) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	res, err := g.refunds.Execute(func() (policies.RefundResult, error) {
		callCtx, cancel := g.callContext(ctx)
		defer cancel()
		return g.next.Refund(callCtx, req)
	})
	return res, translate(err)
}

func (g *BreakerGateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

func translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", policies.ErrGatewayDown, err)
	}
	return err
}

var _ policies.PaymentGateway = (*BreakerGateway)(nil)
