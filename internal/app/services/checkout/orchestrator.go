package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roomstay/internal/app/policies"
	"roomstay/internal/app/services/lifecycle"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

var (
	ErrPaymentFailed        = apperr.New(apperr.Upstream, "checkout: payment could not be completed")
	ErrOrchestratorNotReady = errors.New("checkout: orchestrator missing dependencies")
)

const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

var defaultBackoff = []time.Duration{200 * time.Millisecond, time.Second, 3 * time.Second}

// Orchestrator drives quote, hold, pay and confirm for one checkout. Payment
// failures always end with the hold released.
type Orchestrator struct {
	Lifecycle   *lifecycle.Manager
	Bookings    booking.Repository
	Quoter      *pricing.Quoter
	Gateway     policies.PaymentGateway
	Backoff     []time.Duration
	MaxAttempts int
	Timeout     time.Duration
	Now         func() time.Time
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *slog.Logger
}

type QuoteInput struct {
	UnitID              units.UnitID
	Stay                daterange.DateRange
	Guests              booking.Guests
	Rooms               int
	AddOnIDs            []string
	PromotionID         string
	ClientDiscountCents *int64
}

// Quote prices a stay without touching availability or bookings.
func (o *Orchestrator) Quote(ctx context.Context, in QuoteInput) (pricing.Quote, error) {
	if o.Quoter == nil {
		return pricing.Quote{}, ErrOrchestratorNotReady
	}
	if in.Guests.Adults < 1 || in.Guests.Children < 0 {
		return pricing.Quote{}, booking.ErrInvalidGuests
	}
	q, _, err := o.Quoter.Quote(ctx, pricing.Request{
		UnitID:              in.UnitID,
		Stay:                in.Stay,
		Guests:              in.Guests.Total(),
		Rooms:               in.Rooms,
		AddOnIDs:            in.AddOnIDs,
		PromotionID:         in.PromotionID,
		ClientDiscountCents: in.ClientDiscountCents,
	})
	return q, err
}

func (o *Orchestrator) Hold(ctx context.Context, in lifecycle.HoldInput) (*booking.Booking, error) {
	if o.Lifecycle == nil {
		return nil, ErrOrchestratorNotReady
	}
	return o.Lifecycle.Hold(ctx, in)
}

type PayInput struct {
	BookingID    booking.BookingID
	PaymentToken string
}

// Pay charges the amount due on a pending booking and confirms it. A declined
// or exhausted charge aborts the hold and surfaces an upstream error.
func (o *Orchestrator) Pay(ctx context.Context, in PayInput) (*booking.Booking, error) {
	if err := o.ensure(); err != nil {
		return nil, err
	}
	b, err := o.Bookings.ByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	switch {
	case b.Status == booking.StatusConfirmed:
		return b, nil
	case b.Status != booking.StatusPending:
		return nil, &booking.TransitionError{From: b.Status, To: booking.StatusConfirmed}
	case b.HoldExpired(o.now()):
		// The sweeper may not have run yet; do not take money for a dead hold.
		if _, err := o.Lifecycle.Abort(ctx, b.ID, booking.ReasonHoldExpired); err != nil {
			return nil, err
		}
		return nil, lifecycle.ErrHoldExpired
	}

	amount := b.DueCents
	if amount == 0 {
		amount = b.Price.TotalCents
	}
	result, err := o.charge(ctx, policies.ChargeRequest{
		BookingID:      string(b.ID),
		AmountCents:    amount,
		Currency:       b.Price.Currency,
		IdempotencyKey: "charge-" + string(b.ID),
		PaymentToken:   in.PaymentToken,
	})
	if err == nil && !result.Verified {
		err = policies.ErrPaymentDeclined
	}
	if err != nil {
		o.logger().WarnContext(ctx, "payment failed, releasing hold",
			slog.String("booking_id", string(b.ID)), slog.Any("error", err))
		failure := fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		if _, abortErr := o.Lifecycle.Abort(ctx, b.ID, booking.ReasonPaymentFailed); abortErr != nil {
			return nil, errors.Join(failure, abortErr)
		}
		return nil, failure
	}
	if result.AmountCents == 0 {
		result.AmountCents = amount
	}
	return o.settle(ctx, b.ID, result.ProviderRef, result.AmountCents, b.Price.Currency)
}

// PaymentEvent is an asynchronous gateway notification, delivered by webhook
// or from the payment events topic.
type PaymentEvent struct {
	EventID     string
	BookingID   booking.BookingID
	Status      string
	ProviderRef string
	AmountCents int64
	Currency    string
}

// HandlePaymentResult applies a gateway notification. Repeated notifications
// are harmless: confirm and abort are both idempotent.
func (o *Orchestrator) HandlePaymentResult(ctx context.Context, ev PaymentEvent) (*booking.Booking, error) {
	if err := o.ensure(); err != nil {
		return nil, err
	}
	switch ev.Status {
	case PaymentSucceeded:
		return o.settle(ctx, ev.BookingID, ev.ProviderRef, ev.AmountCents, ev.Currency)
	case PaymentFailed:
		b, err := o.Bookings.ByID(ctx, ev.BookingID)
		if err != nil {
			return nil, err
		}
		if b.Status != booking.StatusPending {
			return b, nil
		}
		return o.Lifecycle.Abort(ctx, ev.BookingID, booking.ReasonPaymentFailed)
	default:
		return nil, apperr.New(apperr.Validation, "checkout: unknown payment status "+ev.Status)
	}
}

// settle confirms a verified payment. Money that arrives for a booking that
// can no longer take it (a lapsed hold, an aborted or cancelled booking, a no
// show), or a second payment for a confirmed booking, is refunded.
func (o *Orchestrator) settle(ctx context.Context, id booking.BookingID, providerRef string, amount int64, currency string) (*booking.Booking, error) {
	b, err := o.Lifecycle.Confirm(ctx, lifecycle.ConfirmInput{BookingID: id, PaymentRef: providerRef, AmountCents: amount})
	if errors.Is(err, lifecycle.ErrHoldExpired) || errors.Is(err, lifecycle.ErrBookingClosed) {
		o.logger().WarnContext(ctx, "payment arrived for a closed booking, voiding",
			slog.String("booking_id", string(id)),
			slog.String("payment_ref", providerRef),
			slog.String("status", string(b.Status)))
		o.refund(ctx, policies.RefundRequest{
			AmountCents:    amount,
			Currency:       currencyOf(b, currency),
			ProviderRef:    providerRef,
			IdempotencyKey: "void-" + string(id),
		})
		return b, err
	}
	if err != nil {
		return nil, err
	}
	if providerRef != "" && b.PaymentRef != "" && b.PaymentRef != providerRef {
		o.logger().WarnContext(ctx, "duplicate payment for confirmed booking, refunding",
			slog.String("booking_id", string(id)), slog.String("payment_ref", providerRef))
		o.refund(ctx, policies.RefundRequest{
			AmountCents:    amount,
			Currency:       currencyOf(b, currency),
			ProviderRef:    providerRef,
			IdempotencyKey: "dup-" + providerRef,
		})
	}
	return b, nil
}

func (o *Orchestrator) charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeResult, error) {
	var lastErr error
	for attempt := 0; attempt < o.maxAttempts(); attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.backoff(attempt-1)); err != nil {
				return policies.ChargeResult{}, err
			}
		}
		callCtx, cancel := o.callContext(ctx)
		res, err := o.Gateway.Charge(callCtx, req)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		o.logger().InfoContext(ctx, "charge attempt failed",
			slog.String("booking_id", req.BookingID), slog.Int("attempt", attempt+1), slog.Any("error", err))
	}
	return policies.ChargeResult{}, lastErr
}

// refund retries like charge; a refund that still fails is logged for manual
// follow-up since the caller's outcome does not depend on it.
func (o *Orchestrator) refund(ctx context.Context, req policies.RefundRequest) {
	var lastErr error
	for attempt := 0; attempt < o.maxAttempts(); attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.backoff(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		callCtx, cancel := o.callContext(ctx)
		res, err := o.Gateway.Refund(callCtx, req)
		cancel()
		if err == nil && res.Completed {
			o.logger().InfoContext(ctx, "compensating refund issued",
				slog.String("key", req.IdempotencyKey), slog.String("refund_ref", res.ProviderRef))
			return
		}
		lastErr = err
		if err != nil && !retryable(err) {
			break
		}
	}
	o.logger().ErrorContext(ctx, "compensating refund failed",
		slog.String("key", req.IdempotencyKey),
		slog.Int64("amount_cents", req.AmountCents),
		slog.Any("error", lastErr))
}

func retryable(err error) bool {
	return !errors.Is(err, policies.ErrPaymentDeclined) && !errors.Is(err, policies.ErrGatewayDown) && !errors.Is(err, context.Canceled)
}

func currencyOf(b *booking.Booking, fallback string) string {
	if b != nil && b.Price.Currency != "" {
		return b.Price.Currency
	}
	return fallback
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) backoff(i int) time.Duration {
	steps := o.Backoff
	if len(steps) == 0 {
		steps = defaultBackoff
	}
	if i < len(steps) {
		return steps[i]
	}
	return steps[len(steps)-1]
}

func (o *Orchestrator) maxAttempts() int {
	if o.MaxAttempts > 0 {
		return o.MaxAttempts
	}
	return 3
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) ensure() error {
	if o.Lifecycle == nil || o.Bookings == nil || o.Gateway == nil {
		return ErrOrchestratorNotReady
	}
	return nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
