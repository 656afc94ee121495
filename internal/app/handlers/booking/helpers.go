package booking

import (
	"context"

	"roomstay/internal/app/services/lifecycle"
	domainbooking "roomstay/internal/domain/booking"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/units"
)

var ErrNotYourBooking = apperr.New(apperr.Forbidden, "booking: belongs to another guest")

func loadOwned(ctx context.Context, repo domainbooking.Repository, id, guestID string, operator bool) (*domainbooking.Booking, error) {
	b, err := repo.ByID(ctx, domainbooking.BookingID(id))
	if err != nil {
		return nil, err
	}
	if !operator && b.GuestID != guestID {
		return nil, ErrNotYourBooking
	}
	return b, nil
}

// checkStaff admits operators and the owner of the booked unit's property.
func checkStaff(ctx context.Context, catalog units.Catalog, b *domainbooking.Booking, actorID string, operator bool) error {
	if operator {
		return nil
	}
	prop, err := catalog.Property(ctx, b.PropertyID)
	if err != nil {
		return err
	}
	if !prop.OwnedBy(actorID) {
		return lifecycle.ErrNotOwner
	}
	return nil
}
