package lifecycle

import (
	"context"
	"log/slog"

	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/units"
)

// Drift lists disagreements between the availability index and bookings.
type Drift struct {
	UnitID units.UnitID
	// Orphans are booking blocks whose booking is gone or no longer holds dates.
	Orphans []availability.Block
	// Unblocked are bookings that hold dates without a block.
	Unblocked []booking.BookingID
	Repaired  int
}

func (d Drift) Clean() bool {
	return len(d.Orphans) == 0 && len(d.Unblocked) == 0
}

// Reconcile compares a unit's blocks with its bookings. With repair set,
// orphaned blocks are released; unblocked bookings are only reported.
func (m *Manager) Reconcile(ctx context.Context, unitID units.UnitID, repair bool) (Drift, error) {
	drift := Drift{UnitID: unitID}
	if err := m.ensure(); err != nil {
		return drift, err
	}
	err := m.withUnit(ctx, unitID, func() error {
		blocks, err := m.Index.Blocks(ctx, unitID)
		if err != nil {
			return err
		}
		list, err := m.Bookings.ListByUnit(ctx, unitID)
		if err != nil {
			return err
		}
		byID := make(map[string]*booking.Booking, len(list))
		for _, b := range list {
			byID[string(b.ID)] = b
		}
		blocked := make(map[string]bool, len(blocks))
		for _, block := range blocks {
			if block.Reason != availability.ReasonBooking {
				continue
			}
			blocked[block.Reference] = true
			if b, ok := byID[block.Reference]; ok && b.HoldsDates() {
				continue
			}
			drift.Orphans = append(drift.Orphans, block)
		}
		for _, b := range list {
			if b.HoldsDates() && !blocked[string(b.ID)] {
				drift.Unblocked = append(drift.Unblocked, b.ID)
			}
		}
		if !repair {
			return nil
		}
		for _, block := range drift.Orphans {
			if err := m.Index.Release(ctx, unitID, block.Reference); err != nil {
				return err
			}
			drift.Repaired++
		}
		return nil
	})
	if err != nil {
		return drift, err
	}
	if !drift.Clean() {
		m.logger().ErrorContext(ctx, "availability drift detected",
			slog.String("unit_id", string(unitID)),
			slog.String("kind", string(apperr.Invariant)),
			slog.Int("orphans", len(drift.Orphans)),
			slog.Int("unblocked", len(drift.Unblocked)),
			slog.Int("repaired", drift.Repaired))
	}
	return drift, nil
}

// ReconcileAll runs Reconcile over every unit in the catalog.
func (m *Manager) ReconcileAll(ctx context.Context, repair bool) ([]Drift, error) {
	if m.Catalog == nil {
		return nil, ErrManagerNotReady
	}
	list, err := m.Catalog.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	var out []Drift
	for _, u := range list {
		d, err := m.Reconcile(ctx, u.ID, repair)
		if err != nil {
			return out, err
		}
		if !d.Clean() {
			out = append(out, d)
		}
	}
	return out, nil
}
