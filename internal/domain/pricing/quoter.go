package pricing

import (
	"context"
	"errors"

	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

// Request names the stay to price by catalog ids.
type Request struct {
	UnitID              units.UnitID
	Stay                daterange.DateRange
	Guests              int
	Rooms               int
	AddOnIDs            []string
	PromotionID         string
	ClientDiscountCents *int64
}

// Quoter loads catalog entities and hands them to the Engine.
type Quoter struct {
	Catalog units.Catalog
	Engine  *Engine
}

func (q *Quoter) Quote(ctx context.Context, req Request) (Quote, *units.Unit, error) {
	unit, err := q.Catalog.Unit(ctx, req.UnitID)
	if err != nil {
		return Quote{}, nil, err
	}
	property, err := q.Catalog.Property(ctx, unit.PropertyID)
	if err != nil {
		return Quote{}, nil, err
	}
	schedule, err := q.Catalog.Schedule(ctx, unit.ID)
	if err != nil && !errors.Is(err, units.ErrSeasonalNotFound) {
		return Quote{}, nil, err
	}
	addOns := make([]*units.AddOn, 0, len(req.AddOnIDs))
	for _, id := range req.AddOnIDs {
		a, err := q.Catalog.AddOn(ctx, id)
		if err != nil {
			if errors.Is(err, units.ErrAddOnNotFound) {
				return Quote{}, nil, units.ErrAddOnNotApplicable
			}
			return Quote{}, nil, err
		}
		addOns = append(addOns, a)
	}
	var promo *units.Promotion
	if req.PromotionID != "" {
		promo, err = q.Catalog.Promotion(ctx, req.PromotionID)
		if err != nil {
			if errors.Is(err, units.ErrPromotionNotFound) {
				return Quote{}, nil, units.ErrPromotionNotApplicable
			}
			return Quote{}, nil, err
		}
	}
	engine := q.Engine
	if engine == nil {
		engine = &Engine{}
	}
	quote, err := engine.Quote(ctx, QuoteInput{
		Property:            property,
		Unit:                unit,
		Schedule:            schedule,
		Stay:                req.Stay,
		Guests:              req.Guests,
		Rooms:               req.Rooms,
		AddOns:              addOns,
		Promotion:           promo,
		ClientDiscountCents: req.ClientDiscountCents,
	})
	if err != nil {
		return Quote{}, nil, err
	}
	return quote, unit, nil
}
