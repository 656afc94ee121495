package units

import (
	"slices"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/shared/money"
)

var (
	ErrPromotionNotFound      = apperr.New(apperr.NotFound, "units: promotion not found")
	ErrInvalidPromotion       = apperr.New(apperr.Validation, "units: invalid promotion definition")
	ErrPromotionNotApplicable = apperr.New(apperr.Validation, "units: promotion does not apply to this stay")
)

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// Promotion discounts the room and add-on subtotal of stays whose check-in
// falls inside Valid.
type Promotion struct {
	ID          string
	PropertyID  PropertyID
	UnitIDs     []UnitID
	Kind        DiscountKind
	PercentBps  int64
	AmountCents int64
	Valid       daterange.DateRange
	MinNights   int
	Active      bool
	Version     int64
}

func (p *Promotion) Validate() error {
	if p.ID == "" || len(p.UnitIDs) == 0 {
		return ErrInvalidPromotion
	}
	if err := p.Valid.Validate(); err != nil {
		return err
	}
	switch p.Kind {
	case DiscountPercent:
		if p.PercentBps <= 0 || p.PercentBps > 10000 {
			return ErrInvalidPromotion
		}
	case DiscountFixed:
		if p.AmountCents <= 0 {
			return ErrInvalidPromotion
		}
	default:
		return ErrInvalidPromotion
	}
	if p.MinNights < 0 {
		return ErrInvalidPromotion
	}
	return nil
}

// CheckApplicable re-validates the promotion for a concrete stay.
func (p *Promotion) CheckApplicable(unitID UnitID, stay daterange.DateRange) error {
	if !p.Active {
		return ErrPromotionNotApplicable
	}
	if !slices.Contains(p.UnitIDs, unitID) {
		return ErrPromotionNotApplicable
	}
	if !p.Valid.ContainsDate(stay.CheckIn) {
		return ErrPromotionNotApplicable
	}
	if p.MinNights > 0 && stay.Nights() < p.MinNights {
		return ErrPromotionNotApplicable
	}
	return nil
}

// Discount is the amount taken off base, never more than base itself.
func (p *Promotion) Discount(base money.Money) money.Money {
	var off money.Money
	switch p.Kind {
	case DiscountPercent:
		off = base.BasisPoints(p.PercentBps)
	case DiscountFixed:
		off = money.Money{Amount: p.AmountCents, Currency: base.Currency}
	default:
		return money.Zero(base.Currency)
	}
	if off.Amount < 0 {
		return money.Zero(base.Currency)
	}
	return off.Min(base)
}
