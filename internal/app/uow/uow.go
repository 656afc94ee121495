package uow

import (
	"context"

	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/units"
)

// UnitOfWork hands out repositories bound to one transaction.
type UnitOfWork interface {
	Catalog() units.Catalog
	Policies() cancellation.Repository
	Bookings() booking.Repository
	Refunds() refund.Repository
	Calendars() availability.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
