package payments

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"roomstay/internal/app/policies"
)

// Tokens with a fixed outcome in the sandbox.
const (
	TokenDecline     = "tok_decline"
	TokenUnavailable = "tok_unavailable"
)

var ErrSandboxUnavailable = errors.New("payments: sandbox gateway unavailable")

// SandboxGateway is a deterministic in-process gateway for development and
// tests. Every call is remembered by idempotency key and replayed.
type SandboxGateway struct {
	mu      sync.Mutex
	charges map[string]policies.ChargeResult
	refunds map[string]policies.RefundResult
	calls   int
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		charges: make(map[string]policies.ChargeResult),
		refunds: make(map[string]policies.RefundResult),
	}
}

func (g *SandboxGateway) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return policies.ChargeResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if res, ok := g.charges[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return res, nil
	}
	switch req.PaymentToken {
	case TokenDecline:
		return policies.ChargeResult{}, policies.ErrPaymentDeclined
	case TokenUnavailable:
		return policies.ChargeResult{}, ErrSandboxUnavailable
	}
	res := policies.ChargeResult{Verified: true, ProviderRef: "ch_" + uuid.NewString(), AmountCents: req.AmountCents}
	if req.IdempotencyKey != "" {
		g.charges[req.IdempotencyKey] = res
	}
	return res, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return policies.RefundResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if res, ok := g.refunds[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return res, nil
	}
	res := policies.RefundResult{Completed: true, ProviderRef: "re_" + uuid.NewString()}
	if req.IdempotencyKey != "" {
		g.refunds[req.IdempotencyKey] = res
	}
	return res, nil
}

// Calls counts gateway invocations, replays included.
func (g *SandboxGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

var _ policies.PaymentGateway = (*SandboxGateway)(nil)
