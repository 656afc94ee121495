package memory

import (
	"context"
	"slices"
	"sync"

	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/units"
)

// CalendarRepository backs availability.CalendarIndex in memory. Save is a
// compare-and-swap on Version, which makes Reserve atomic per unit.
type CalendarRepository struct {
	mu        sync.Mutex
	calendars map[units.UnitID]availability.Calendar
}

func NewCalendarRepository() *CalendarRepository {
	return &CalendarRepository{calendars: make(map[units.UnitID]availability.Calendar)}
}

func (r *CalendarRepository) Calendar(ctx context.Context, unitID units.UnitID) (*availability.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calendars[unitID]
	if !ok {
		return availability.NewCalendar(unitID), nil
	}
	c.Blocks = slices.Clone(c.Blocks)
	return &c, nil
}

func (r *CalendarRepository) Save(ctx context.Context, c *availability.Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.calendars[c.UnitID]
	if current.Version != c.Version {
		return availability.ErrStaleCalendar
	}
	c.Version++
	stored := *c
	stored.Blocks = slices.Clone(c.Blocks)
	r.calendars[c.UnitID] = stored
	return nil
}

var _ availability.Repository = (*CalendarRepository)(nil)
