package memory

import (
	"context"
	"errors"

	"roomstay/internal/app/uow"
	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/units"
)

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory hands out units over shared in-memory stores. There is no isolation;
// versioned saves catch lost updates.
type Factory struct {
	CatalogRepo  units.Catalog
	PolicyRepo   cancellation.Repository
	BookingRepo  booking.Repository
	RefundRepo   refund.Repository
	CalendarRepo availability.Repository
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.CatalogRepo == nil || f.BookingRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{f: f}, nil
}

type Unit struct {
	f Factory
}

func (u *Unit) Catalog() units.Catalog             { return u.f.CatalogRepo }
func (u *Unit) Policies() cancellation.Repository  { return u.f.PolicyRepo }
func (u *Unit) Bookings() booking.Repository       { return u.f.BookingRepo }
func (u *Unit) Refunds() refund.Repository         { return u.f.RefundRepo }
func (u *Unit) Calendars() availability.Repository { return u.f.CalendarRepo }
func (u *Unit) Commit(ctx context.Context) error   { return nil }
func (u *Unit) Rollback(ctx context.Context) error { return nil }

var _ uow.UnitOfWork = (*Unit)(nil)
