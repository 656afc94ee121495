package policies

import (
	"context"

	"roomstay/internal/domain/units"
)

// UnitLocker serializes writers on one unit. The returned func releases the lock.
type UnitLocker interface {
	Lock(ctx context.Context, unitID units.UnitID) (func(), error)
}
