package booking

import (
	"context"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/services/checkout"
	"roomstay/internal/app/services/lifecycle"
	domainbooking "roomstay/internal/domain/booking"
	domainrange "roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

const holdBookingKey = "booking.hold"

type HoldBookingCommand struct {
	GuestID             string   `validate:"required"`
	UnitID              string   `validate:"required"`
	CheckIn             string   `validate:"required"`
	CheckOut            string   `validate:"required"`
	Adults              int      `validate:"gte=1"`
	Children            int      `validate:"gte=0"`
	Rooms               int      `validate:"gte=0"`
	AddOnIDs            []string `validate:"dive,required"`
	PromotionID         string
	ClientDiscountCents *int64
	IdempotencyKeyV     string `validate:"required,max=128"`
}

func (c HoldBookingCommand) Key() string { return holdBookingKey }

func (c HoldBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c HoldBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c HoldBookingCommand) AllowedRoles() []string { return []string{middleware.RoleGuest} }

type HoldBookingHandler struct {
	Checkout *checkout.Orchestrator
}

func (h *HoldBookingHandler) Handle(ctx context.Context, cmd HoldBookingCommand) (*dto.Booking, error) {
	stay, err := domainrange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	b, err := h.Checkout.Hold(ctx, lifecycle.HoldInput{
		IdempotencyKey:      cmd.IdempotencyKeyV,
		GuestID:             cmd.GuestID,
		UnitID:              units.UnitID(cmd.UnitID),
		Stay:                stay,
		Guests:              domainbooking.Guests{Adults: cmd.Adults, Children: cmd.Children},
		Rooms:               cmd.Rooms,
		AddOnIDs:            cmd.AddOnIDs,
		PromotionID:         cmd.PromotionID,
		ClientDiscountCents: cmd.ClientDiscountCents,
	})
	if err != nil {
		return nil, err
	}
	result := dto.MapBooking(b)
	return &result, nil
}

var _ commands.Handler[HoldBookingCommand, *dto.Booking] = (*HoldBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*HoldBookingCommand)(nil)
