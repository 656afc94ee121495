package booking

import (
	"context"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/services/checkout"
	domainbooking "roomstay/internal/domain/booking"
)

const (
	payBookingKey         = "booking.pay"
	applyPaymentResultKey = "booking.payment_result"
	confirmBookingKey     = "booking.confirm"
)

type PayBookingCommand struct {
	BookingID       string `validate:"required"`
	GuestID         string `validate:"required"`
	PaymentToken    string `validate:"required"`
	IdempotencyKeyV string `validate:"required,max=128"`
}

func (c PayBookingCommand) Key() string { return payBookingKey }

func (c PayBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c PayBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c PayBookingCommand) AllowedRoles() []string { return []string{middleware.RoleGuest} }

type PayBookingHandler struct {
	Checkout *checkout.Orchestrator
	Bookings domainbooking.Repository
}

func (h *PayBookingHandler) Handle(ctx context.Context, cmd PayBookingCommand) (*dto.Booking, error) {
	if _, err := loadOwned(ctx, h.Bookings, cmd.BookingID, cmd.GuestID, false); err != nil {
		return nil, err
	}
	b, err := h.Checkout.Pay(ctx, checkout.PayInput{
		BookingID:    domainbooking.BookingID(cmd.BookingID),
		PaymentToken: cmd.PaymentToken,
	})
	if err != nil {
		return nil, err
	}
	result := dto.MapBooking(b)
	return &result, nil
}

// ApplyPaymentResultCommand carries an asynchronous gateway notification. The
// provider's event id doubles as the idempotency key.
type ApplyPaymentResultCommand struct {
	EventID     string `validate:"required"`
	BookingID   string `validate:"required"`
	Status      string `validate:"required,oneof=succeeded failed"`
	ProviderRef string
	AmountCents int64 `validate:"gte=0"`
	Currency    string
}

func (c ApplyPaymentResultCommand) Key() string { return applyPaymentResultKey }

func (c ApplyPaymentResultCommand) IdempotencyKey() string { return c.EventID }

func (c ApplyPaymentResultCommand) ResultPrototype() any { return &dto.Booking{} }

func (c ApplyPaymentResultCommand) AllowedRoles() []string { return []string{middleware.RoleSystem} }

type ApplyPaymentResultHandler struct {
	Checkout *checkout.Orchestrator
}

func (h *ApplyPaymentResultHandler) Handle(ctx context.Context, cmd ApplyPaymentResultCommand) (*dto.Booking, error) {
	b, err := h.Checkout.HandlePaymentResult(ctx, checkout.PaymentEvent{
		EventID:     cmd.EventID,
		BookingID:   domainbooking.BookingID(cmd.BookingID),
		Status:      cmd.Status,
		ProviderRef: cmd.ProviderRef,
		AmountCents: cmd.AmountCents,
		Currency:    cmd.Currency,
	})
	if err != nil {
		return nil, err
	}
	result := dto.MapBooking(b)
	return &result, nil
}

// ConfirmBookingCommand records a payment captured outside the checkout flow.
// It settles the booking exactly like a gateway success notification.
type ConfirmBookingCommand struct {
	BookingID   string `validate:"required"`
	PaymentRef  string `validate:"required"`
	AmountCents int64  `validate:"gt=0"`
	Currency    string `validate:"omitempty,len=3"`
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) AllowedRoles() []string { return []string{middleware.RoleOperator} }

type ConfirmBookingHandler struct {
	Checkout *checkout.Orchestrator
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.Booking, error) {
	b, err := h.Checkout.HandlePaymentResult(ctx, checkout.PaymentEvent{
		EventID:     "confirm-" + cmd.PaymentRef,
		BookingID:   domainbooking.BookingID(cmd.BookingID),
		Status:      checkout.PaymentSucceeded,
		ProviderRef: cmd.PaymentRef,
		AmountCents: cmd.AmountCents,
		Currency:    cmd.Currency,
	})
	if err != nil {
		return nil, err
	}
	result := dto.MapBooking(b)
	return &result, nil
}

var (
	_ commands.Handler[ConfirmBookingCommand, *dto.Booking]     = (*ConfirmBookingHandler)(nil)
	_ commands.Handler[PayBookingCommand, *dto.Booking]         = (*PayBookingHandler)(nil)
	_ commands.Handler[ApplyPaymentResultCommand, *dto.Booking] = (*ApplyPaymentResultHandler)(nil)
	_ middleware.IdempotentCommand                              = (*PayBookingCommand)(nil)
	_ middleware.IdempotentCommand                              = (*ApplyPaymentResultCommand)(nil)
)
