package ops

import (
	"context"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/services/lifecycle"
	"roomstay/internal/domain/units"
)

const (
	reconcileKey   = "ops.reconcile"
	expireHoldsKey = "ops.expire_holds"
)

type DriftReport struct {
	UnitID    string   `json:"unit_id"`
	Orphans   []string `json:"orphan_blocks"`
	Unblocked []string `json:"unblocked_bookings"`
	Repaired  int      `json:"repaired"`
}

type ReconcileResult struct {
	Drift []DriftReport `json:"drift"`
}

// ReconcileCommand compares calendars with bookings. An empty UnitID checks
// every unit.
type ReconcileCommand struct {
	UnitID string
	Repair bool
}

func (c ReconcileCommand) Key() string { return reconcileKey }

func (c ReconcileCommand) AllowedRoles() []string { return []string{middleware.RoleOperator} }

type ReconcileHandler struct {
	Lifecycle *lifecycle.Manager
}

func (h *ReconcileHandler) Handle(ctx context.Context, cmd ReconcileCommand) (*ReconcileResult, error) {
	var drifts []lifecycle.Drift
	if cmd.UnitID != "" {
		d, err := h.Lifecycle.Reconcile(ctx, units.UnitID(cmd.UnitID), cmd.Repair)
		if err != nil {
			return nil, err
		}
		if !d.Clean() {
			drifts = append(drifts, d)
		}
	} else {
		all, err := h.Lifecycle.ReconcileAll(ctx, cmd.Repair)
		if err != nil {
			return nil, err
		}
		drifts = all
	}
	out := &ReconcileResult{Drift: make([]DriftReport, 0, len(drifts))}
	for _, d := range drifts {
		report := DriftReport{UnitID: string(d.UnitID), Repaired: d.Repaired}
		for _, b := range d.Orphans {
			report.Orphans = append(report.Orphans, b.Reference)
		}
		for _, id := range d.Unblocked {
			report.Unblocked = append(report.Unblocked, string(id))
		}
		out.Drift = append(out.Drift, report)
	}
	return out, nil
}

type ExpireHoldsCommand struct{}

func (c ExpireHoldsCommand) Key() string { return expireHoldsKey }

func (c ExpireHoldsCommand) AllowedRoles() []string { return []string{middleware.RoleOperator} }

type ExpireHoldsResult struct {
	Expired int `json:"expired"`
}

type ExpireHoldsHandler struct {
	Lifecycle *lifecycle.Manager
}

func (h *ExpireHoldsHandler) Handle(ctx context.Context, _ ExpireHoldsCommand) (*ExpireHoldsResult, error) {
	n, err := h.Lifecycle.ExpireHolds(ctx)
	if err != nil {
		return nil, err
	}
	return &ExpireHoldsResult{Expired: n}, nil
}

var (
	_ commands.Handler[ReconcileCommand, *ReconcileResult]     = (*ReconcileHandler)(nil)
	_ commands.Handler[ExpireHoldsCommand, *ExpireHoldsResult] = (*ExpireHoldsHandler)(nil)
)
