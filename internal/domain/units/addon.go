package units

import (
	"roomstay/internal/domain/shared/apperr"
)

var (
	ErrAddOnNotFound      = apperr.New(apperr.NotFound, "units: add-on not found")
	ErrInvalidAddOn       = apperr.New(apperr.Validation, "units: invalid add-on definition")
	ErrAddOnNotApplicable = apperr.New(apperr.Validation, "units: add-on is not offered for this unit")
)

type AddOnPricing string

const (
	PerBooking AddOnPricing = "per_booking"
	PerNight   AddOnPricing = "per_night"
	PerGuest   AddOnPricing = "per_guest"
	PerRoom    AddOnPricing = "per_room"
)

// AddOn is an optional extra. An empty UnitID offers it on every unit of the property.
type AddOn struct {
	ID         string
	PropertyID PropertyID
	UnitID     UnitID
	Name       string
	Pricing    AddOnPricing
	PriceCents int64
	Active     bool
	Version    int64
}

func (a *AddOn) Validate() error {
	if a.ID == "" || a.PropertyID == "" || a.PriceCents < 0 {
		return ErrInvalidAddOn
	}
	switch a.Pricing {
	case PerBooking, PerNight, PerGuest, PerRoom:
		return nil
	default:
		return ErrInvalidAddOn
	}
}

func (a *AddOn) OfferedFor(u *Unit) bool {
	if !a.Active || a.PropertyID != u.PropertyID {
		return false
	}
	return a.UnitID == "" || a.UnitID == u.ID
}

// Quantity is the multiplier applied to PriceCents for a stay.
func (a *AddOn) Quantity(nights, guests, rooms int) int64 {
	switch a.Pricing {
	case PerNight:
		return int64(nights)
	case PerGuest:
		return int64(guests)
	case PerRoom:
		return int64(rooms)
	default:
		return 1
	}
}
