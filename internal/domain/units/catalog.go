package units

import "context"

// Catalog stores the owner-managed entities a quote is computed from.
type Catalog interface {
	Property(ctx context.Context, id PropertyID) (*Property, error)
	SaveProperty(ctx context.Context, p *Property) error

	Unit(ctx context.Context, id UnitID) (*Unit, error)
	SaveUnit(ctx context.Context, u *Unit) error
	ListUnits(ctx context.Context) ([]*Unit, error)

	Schedule(ctx context.Context, unitID UnitID) (*SeasonalSchedule, error)
	SaveSchedule(ctx context.Context, s *SeasonalSchedule) error

	Promotion(ctx context.Context, id string) (*Promotion, error)
	SavePromotion(ctx context.Context, p *Promotion) error

	AddOn(ctx context.Context, id string) (*AddOn, error)
	SaveAddOn(ctx context.Context, a *AddOn) error
}
