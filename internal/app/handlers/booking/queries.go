package booking

import (
	"context"
	"errors"
	"log/slog"

	"roomstay/internal/app/dto"
	handlersupport "roomstay/internal/app/handlers/support"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/queries"
	"roomstay/internal/app/services/lifecycle"
	"roomstay/internal/app/uow"
	domainbooking "roomstay/internal/domain/booking"
	"roomstay/internal/domain/units"
)

const (
	getBookingKey        = "booking.get"
	listGuestBookingsKey = "booking.list_guest"
	listUnitBookingsKey  = "booking.list_unit"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Operator  bool
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle shows a booking to its guest, to the owner of the unit and to operators.
func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	if b.GuestID != q.ActorID {
		if err := checkStaff(execCtx, unit.Catalog(), b, q.ActorID, q.Operator); err != nil {
			if errors.Is(err, lifecycle.ErrNotOwner) {
				return dto.Booking{}, ErrNotYourBooking
			}
			return dto.Booking{}, err
		}
	}
	return dto.MapBooking(b), nil
}

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

func (q ListGuestBookingsQuery) AllowedRoles() []string { return []string{middleware.RoleGuest} }

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	list, err := unit.Bookings().ListByGuest(execCtx, q.GuestID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if h.Logger != nil {
		h.Logger.Debug("guest bookings listed", "guest_id", q.GuestID, "count", len(list))
	}
	return collect(list), nil
}

type ListUnitBookingsQuery struct {
	UnitID   string `validate:"required"`
	ActorID  string `validate:"required"`
	Operator bool
}

func (q ListUnitBookingsQuery) Key() string { return listUnitBookingsKey }

func (q ListUnitBookingsQuery) AllowedRoles() []string {
	return []string{middleware.RoleOwner, middleware.RoleOperator}
}

type ListUnitBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListUnitBookingsHandler) Handle(ctx context.Context, q ListUnitBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if !q.Operator {
		u, err := unit.Catalog().Unit(execCtx, units.UnitID(q.UnitID))
		if err != nil {
			return dto.BookingCollection{}, err
		}
		prop, err := unit.Catalog().Property(execCtx, u.PropertyID)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		if !prop.OwnedBy(q.ActorID) {
			return dto.BookingCollection{}, lifecycle.ErrNotOwner
		}
	}
	list, err := unit.Bookings().ListByUnit(execCtx, units.UnitID(q.UnitID))
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return collect(list), nil
}

func collect(list []*domainbooking.Booking) dto.BookingCollection {
	items := make([]dto.Booking, 0, len(list))
	for _, b := range list {
		items = append(items, dto.MapBooking(b))
	}
	return dto.BookingCollection{Items: items}
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]                  = (*GetBookingHandler)(nil)
	_ queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] = (*ListGuestBookingsHandler)(nil)
	_ queries.Handler[ListUnitBookingsQuery, dto.BookingCollection]  = (*ListUnitBookingsHandler)(nil)
)
