package policies

import (
	"context"

	"roomstay/internal/domain/shared/apperr"
)

var (
	ErrPaymentDeclined = apperr.New(apperr.Upstream, "payments: charge declined")
	ErrGatewayDown     = apperr.New(apperr.Upstream, "payments: gateway unavailable")
)

type ChargeRequest struct {
	BookingID      string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	PaymentToken   string
}

type ChargeResult struct {
	Verified    bool
	ProviderRef string
	AmountCents int64
}

type RefundRequest struct {
	AmountCents    int64
	Currency       string
	ProviderRef    string
	IdempotencyKey string
}

type RefundResult struct {
	Completed   bool
	ProviderRef string
}

// PaymentGateway captures and refunds money. Both calls are keyed so a retry
// with the same IdempotencyKey never moves money twice.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}
