package booking

import (
	"context"

	"roomstay/internal/app/dto"
	"roomstay/internal/app/queries"
	"roomstay/internal/app/services/checkout"
	domainbooking "roomstay/internal/domain/booking"
	domainrange "roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

const quoteStayKey = "booking.quote"

type QuoteStayQuery struct {
	UnitID      string   `validate:"required"`
	CheckIn     string   `validate:"required"`
	CheckOut    string   `validate:"required"`
	Adults      int      `validate:"gte=1"`
	Children    int      `validate:"gte=0"`
	Rooms       int      `validate:"gte=0"`
	AddOnIDs    []string `validate:"dive,required"`
	PromotionID string
	// ClientDiscountCents is accepted from clients but never priced.
	ClientDiscountCents *int64
}

func (q QuoteStayQuery) Key() string { return quoteStayKey }

type QuoteStayHandler struct {
	Checkout *checkout.Orchestrator
}

func (h *QuoteStayHandler) Handle(ctx context.Context, q QuoteStayQuery) (dto.Quote, error) {
	stay, err := domainrange.Parse(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Quote{}, err
	}
	quote, err := h.Checkout.Quote(ctx, checkout.QuoteInput{
		UnitID:              units.UnitID(q.UnitID),
		Stay:                stay,
		Guests:              domainbooking.Guests{Adults: q.Adults, Children: q.Children},
		Rooms:               q.Rooms,
		AddOnIDs:            q.AddOnIDs,
		PromotionID:         q.PromotionID,
		ClientDiscountCents: q.ClientDiscountCents,
	})
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(quote), nil
}

var _ queries.Handler[QuoteStayQuery, dto.Quote] = (*QuoteStayHandler)(nil)
