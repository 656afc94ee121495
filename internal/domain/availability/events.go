package availability

import (
	"time"

	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

type DatesBlocked struct {
	UnitID    string
	Range     daterange.DateRange
	Reason    BlockReason
	Reference string
	At        time.Time
}

func (e DatesBlocked) EventName() string     { return "availability.blocked" }
func (e DatesBlocked) AggregateID() string   { return e.UnitID }
func (e DatesBlocked) OccurredAt() time.Time { return e.At }
func (e DatesBlocked) UnitRef() string       { return e.UnitID }

type DatesReleased struct {
	UnitID    string
	Reference string
	At        time.Time
}

func (e DatesReleased) EventName() string     { return "availability.released" }
func (e DatesReleased) AggregateID() string   { return e.UnitID }
func (e DatesReleased) OccurredAt() time.Time { return e.At }
func (e DatesReleased) UnitRef() string       { return e.UnitID }

type OverbookingPrevented struct {
	UnitID string
	Range  daterange.DateRange
	At     time.Time
}

func (e OverbookingPrevented) EventName() string     { return "availability.overbooking_prevented" }
func (e OverbookingPrevented) AggregateID() string   { return e.UnitID }
func (e OverbookingPrevented) OccurredAt() time.Time { return e.At }
func (e OverbookingPrevented) UnitRef() string       { return e.UnitID }

func BlockedEvent(unitID units.UnitID, r daterange.DateRange, reason BlockReason, ref string, at time.Time) DatesBlocked {
	return DatesBlocked{UnitID: string(unitID), Range: r, Reason: reason, Reference: ref, At: at}
}

func ReleasedEvent(unitID units.UnitID, ref string, at time.Time) DatesReleased {
	return DatesReleased{UnitID: string(unitID), Reference: ref, At: at}
}

func OverbookingPreventedEvent(unitID units.UnitID, r daterange.DateRange, at time.Time) OverbookingPrevented {
	return OverbookingPrevented{UnitID: string(unitID), Range: r, At: at}
}
