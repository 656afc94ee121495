package refunds

import (
	"context"

	"roomstay/internal/app/dto"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/queries"
	refundsvc "roomstay/internal/app/services/refunds"
	domainbooking "roomstay/internal/domain/booking"
)

const (
	previewRefundKey = "refunds.preview"
	listRefundsKey   = "refunds.list"
)

type PreviewRefundQuery struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Operator  bool
}

func (q PreviewRefundQuery) Key() string { return previewRefundKey }

func (q PreviewRefundQuery) AllowedRoles() []string {
	return []string{middleware.RoleGuest, middleware.RoleOperator}
}

type PreviewRefundHandler struct {
	Refunds  *refundsvc.Service
	Bookings domainbooking.Repository
}

func (h *PreviewRefundHandler) Handle(ctx context.Context, q PreviewRefundQuery) (dto.RefundPreview, error) {
	if err := guestOrOperator(ctx, h.Bookings, q.BookingID, q.ActorID, q.Operator); err != nil {
		return dto.RefundPreview{}, err
	}
	out, err := h.Refunds.Preview(ctx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.RefundPreview{}, err
	}
	return dto.MapRefundPreview(q.BookingID, out), nil
}

type ListRefundsQuery struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Operator  bool
}

func (q ListRefundsQuery) Key() string { return listRefundsKey }

func (q ListRefundsQuery) AllowedRoles() []string {
	return []string{middleware.RoleGuest, middleware.RoleOperator}
}

type ListRefundsHandler struct {
	Refunds  *refundsvc.Service
	Bookings domainbooking.Repository
}

func (h *ListRefundsHandler) Handle(ctx context.Context, q ListRefundsQuery) (dto.RefundCollection, error) {
	if err := guestOrOperator(ctx, h.Bookings, q.BookingID, q.ActorID, q.Operator); err != nil {
		return dto.RefundCollection{}, err
	}
	list, err := h.Refunds.ListForBooking(ctx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.RefundCollection{}, err
	}
	items := make([]dto.Refund, 0, len(list))
	for _, r := range list {
		items = append(items, dto.MapRefund(r))
	}
	return dto.RefundCollection{Items: items}, nil
}

func guestOrOperator(ctx context.Context, repo domainbooking.Repository, bookingID, actorID string, operator bool) error {
	if operator {
		return nil
	}
	b, err := repo.ByID(ctx, domainbooking.BookingID(bookingID))
	if err != nil {
		return err
	}
	if b.GuestID != actorID {
		return refundsvc.ErrNotBookingGuest
	}
	return nil
}

var (
	_ queries.Handler[PreviewRefundQuery, dto.RefundPreview]  = (*PreviewRefundHandler)(nil)
	_ queries.Handler[ListRefundsQuery, dto.RefundCollection] = (*ListRefundsHandler)(nil)
)
