package units

import (
	"context"
	"log/slog"

	"roomstay/internal/app/outbox"
	"roomstay/internal/app/services/lifecycle"
	"roomstay/internal/domain/shared/events"
	domainunits "roomstay/internal/domain/units"
)

// Owner identifies the caller of an owner command. Operators may act on any
// property.
type Owner struct {
	ID       string `validate:"required"`
	Operator bool
}

func ownedProperty(ctx context.Context, catalog domainunits.Catalog, id domainunits.PropertyID, owner Owner) (*domainunits.Property, error) {
	prop, err := catalog.Property(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owner.Operator && !prop.OwnedBy(owner.ID) {
		return nil, lifecycle.ErrNotOwner
	}
	return prop, nil
}

func ownedUnit(ctx context.Context, catalog domainunits.Catalog, id domainunits.UnitID, owner Owner) (*domainunits.Unit, *domainunits.Property, error) {
	unit, err := catalog.Unit(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	prop, err := ownedProperty(ctx, catalog, unit.PropertyID, owner)
	if err != nil {
		return nil, nil, err
	}
	return unit, prop, nil
}

// Writer carries what every owner command handler needs to publish events.
type Writer struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (w Writer) publish(ctx context.Context, evs []events.DomainEvent) error {
	return outbox.RecordDomainEvents(ctx, w.Outbox, w.Encoder, evs)
}

func (w Writer) info(ctx context.Context, msg string, args ...any) {
	if w.Logger != nil {
		w.Logger.InfoContext(ctx, msg, args...)
	}
}
