package lifecycle

import (
	"context"
	"log/slog"

	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

// Actor identifies who edits a unit's calendar. Operators may edit any unit.
type Actor struct {
	ID       string
	Operator bool
}

// BlockDates closes dates for maintenance or owner use. It follows the same
// conflict rule as bookings.
func (m *Manager) BlockDates(ctx context.Context, actor Actor, unitID units.UnitID, stay daterange.DateRange) (availability.Block, error) {
	if err := m.ensure(); err != nil {
		return availability.Block{}, err
	}
	if err := stay.Validate(); err != nil {
		return availability.Block{}, err
	}
	if err := m.authorizeUnit(ctx, actor, unitID); err != nil {
		return availability.Block{}, err
	}
	ref := "blk-" + m.newID()
	now := m.now()
	err := m.withUnit(ctx, unitID, func() error {
		return m.Index.Reserve(ctx, unitID, stay, availability.ReasonManual, ref)
	})
	if err != nil {
		return availability.Block{}, err
	}
	m.publish(ctx, availability.BlockedEvent(unitID, stay, availability.ReasonManual, ref, now))
	m.logger().InfoContext(ctx, "dates blocked",
		slog.String("unit_id", string(unitID)), slog.String("ref", ref), slog.String("stay", stay.String()))
	return availability.Block{UnitID: unitID, Range: stay, Reason: availability.ReasonManual, Reference: ref, CreatedAt: now}, nil
}

// UnblockDates removes a manual block. Booking blocks only go away through
// the booking lifecycle.
func (m *Manager) UnblockDates(ctx context.Context, actor Actor, unitID units.UnitID, ref string) error {
	if err := m.ensure(); err != nil {
		return err
	}
	if err := m.authorizeUnit(ctx, actor, unitID); err != nil {
		return err
	}
	err := m.withUnit(ctx, unitID, func() error {
		blocks, err := m.Index.Blocks(ctx, unitID)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			if b.Reference != ref {
				continue
			}
			if b.Reason != availability.ReasonManual {
				return ErrNotManualBlock
			}
			return m.Index.Release(ctx, unitID, ref)
		}
		return availability.ErrBlockNotFound
	})
	if err != nil {
		return err
	}
	m.publish(ctx, availability.ReleasedEvent(unitID, ref, m.now()))
	return nil
}

func (m *Manager) authorizeUnit(ctx context.Context, actor Actor, unitID units.UnitID) error {
	if m.Catalog == nil {
		return ErrManagerNotReady
	}
	unit, err := m.Catalog.Unit(ctx, unitID)
	if err != nil {
		return err
	}
	if actor.Operator {
		return nil
	}
	property, err := m.Catalog.Property(ctx, unit.PropertyID)
	if err != nil {
		return err
	}
	if !property.OwnedBy(actor.ID) {
		return ErrNotOwner
	}
	return nil
}
