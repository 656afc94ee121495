package booking

import (
	"context"
	"log/slog"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/services/lifecycle"
	"roomstay/internal/app/services/refunds"
	domainbooking "roomstay/internal/domain/booking"
	"roomstay/internal/domain/units"
)

const (
	abortBookingKey  = "booking.abort"
	cancelBookingKey = "booking.cancel"
	stayKey          = "booking.stay"
	recordBalanceKey = "booking.record_balance"
)

const (
	ActionCheckIn  = "check_in"
	ActionCheckOut = "check_out"
	ActionNoShow   = "no_show"
)

// AbortBookingCommand drops a pending hold before payment.
type AbortBookingCommand struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Operator  bool
}

func (c AbortBookingCommand) Key() string { return abortBookingKey }

func (c AbortBookingCommand) AllowedRoles() []string {
	return []string{middleware.RoleGuest, middleware.RoleOperator}
}

type AbortBookingHandler struct {
	Lifecycle *lifecycle.Manager
	Bookings  domainbooking.Repository
}

func (h *AbortBookingHandler) Handle(ctx context.Context, cmd AbortBookingCommand) (*dto.Booking, error) {
	current, err := loadOwned(ctx, h.Bookings, cmd.BookingID, cmd.ActorID, cmd.Operator)
	if err != nil {
		return nil, err
	}
	reason := domainbooking.ReasonGuestRequest
	if cmd.Operator {
		reason = domainbooking.ReasonOperatorAction
	}
	b, err := h.Lifecycle.Abort(ctx, current.ID, reason)
	if err != nil {
		return nil, err
	}
	result := dto.MapBooking(b)
	return &result, nil
}

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Operator  bool
	Reason    string `validate:"max=256"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) AllowedRoles() []string {
	return []string{middleware.RoleGuest, middleware.RoleOperator}
}

// CancelBookingHandler cancels a confirmed booking and files the refund its
// frozen policy grants.
type CancelBookingHandler struct {
	Lifecycle *lifecycle.Manager
	Bookings  domainbooking.Repository
	Refunds   *refunds.Service
	Logger    *slog.Logger
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	if _, err := loadOwned(ctx, h.Bookings, cmd.BookingID, cmd.ActorID, cmd.Operator); err != nil {
		return nil, err
	}
	reason := cmd.Reason
	if reason == "" {
		reason = domainbooking.ReasonGuestRequest
		if cmd.Operator {
			reason = domainbooking.ReasonOperatorAction
		}
	}
	b, err := h.Lifecycle.Cancel(ctx, domainbooking.BookingID(cmd.BookingID), reason)
	if err != nil {
		return nil, err
	}
	if h.Refunds != nil {
		if _, err := h.Refunds.OpenForCancellation(ctx, b); err != nil && h.Logger != nil {
			h.Logger.ErrorContext(ctx, "open cancellation refund failed", "booking_id", b.ID, "error", err)
		}
	}
	result := dto.MapBooking(b)
	return &result, nil
}

// StayCommand moves a confirmed booking through check-in, check-out or no-show.
type StayCommand struct {
	Action    string `validate:"required,oneof=check_in check_out no_show"`
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Operator  bool
}

func (c StayCommand) Key() string { return stayKey }

func (c StayCommand) AllowedRoles() []string {
	return []string{middleware.RoleOwner, middleware.RoleOperator}
}

type StayHandler struct {
	Lifecycle *lifecycle.Manager
	Bookings  domainbooking.Repository
	Catalog   units.Catalog
}

func (h *StayHandler) Handle(ctx context.Context, cmd StayCommand) (*dto.Booking, error) {
	current, err := h.Bookings.ByID(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if err := checkStaff(ctx, h.Catalog, current, cmd.ActorID, cmd.Operator); err != nil {
		return nil, err
	}
	var b *domainbooking.Booking
	switch cmd.Action {
	case ActionCheckOut:
		b, err = h.Lifecycle.CheckOut(ctx, current.ID)
	case ActionNoShow:
		b, err = h.Lifecycle.MarkNoShow(ctx, current.ID)
	default:
		b, err = h.Lifecycle.CheckIn(ctx, current.ID)
	}
	if err != nil {
		return nil, err
	}
	result := dto.MapBooking(b)
	return &result, nil
}

// RecordBalanceCommand books a balance instalment on a deposit-confirmed booking.
type RecordBalanceCommand struct {
	BookingID       string `validate:"required"`
	AmountCents     int64  `validate:"gt=0"`
	IdempotencyKeyV string `validate:"required,max=128"`
}

func (c RecordBalanceCommand) Key() string { return recordBalanceKey }

func (c RecordBalanceCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RecordBalanceCommand) ResultPrototype() any { return &dto.Booking{} }

func (c RecordBalanceCommand) AllowedRoles() []string { return []string{middleware.RoleOperator} }

type RecordBalanceHandler struct {
	Lifecycle *lifecycle.Manager
}

func (h *RecordBalanceHandler) Handle(ctx context.Context, cmd RecordBalanceCommand) (*dto.Booking, error) {
	b, err := h.Lifecycle.RecordBalance(ctx, domainbooking.BookingID(cmd.BookingID), cmd.AmountCents)
	if err != nil {
		return nil, err
	}
	result := dto.MapBooking(b)
	return &result, nil
}

var (
	_ commands.Handler[AbortBookingCommand, *dto.Booking]  = (*AbortBookingHandler)(nil)
	_ commands.Handler[CancelBookingCommand, *dto.Booking] = (*CancelBookingHandler)(nil)
	_ commands.Handler[StayCommand, *dto.Booking]          = (*StayHandler)(nil)
	_ commands.Handler[RecordBalanceCommand, *dto.Booking] = (*RecordBalanceHandler)(nil)
	_ middleware.IdempotentCommand                         = (*RecordBalanceCommand)(nil)
)
