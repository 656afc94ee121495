package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/events"
	"roomstay/internal/domain/units"
)

// Catalog keeps owner-managed entities in memory. Values are copied on the way
// in and out so callers never share state through the store.
type Catalog struct {
	mu         sync.RWMutex
	properties map[units.PropertyID]units.Property
	units      map[units.UnitID]units.Unit
	schedules  map[units.UnitID]units.SeasonalSchedule
	promotions map[string]units.Promotion
	addOns     map[string]units.AddOn
}

func NewCatalog() *Catalog {
	return &Catalog{
		properties: make(map[units.PropertyID]units.Property),
		units:      make(map[units.UnitID]units.Unit),
		schedules:  make(map[units.UnitID]units.SeasonalSchedule),
		promotions: make(map[string]units.Promotion),
		addOns:     make(map[string]units.AddOn),
	}
}

func (c *Catalog) Property(ctx context.Context, id units.PropertyID) (*units.Property, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.properties[id]
	if !ok {
		return nil, units.ErrPropertyNotFound
	}
	return &p, nil
}

func (c *Catalog) SaveProperty(ctx context.Context, p *units.Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.Version++
	c.properties[p.ID] = *p
	return nil
}

func (c *Catalog) Unit(ctx context.Context, id units.UnitID) (*units.Unit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.units[id]
	if !ok {
		return nil, units.ErrUnitNotFound
	}
	return &u, nil
}

func (c *Catalog) SaveUnit(ctx context.Context, u *units.Unit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u.Version++
	stored := *u
	stored.EventRecorder = events.EventRecorder{}
	c.units[u.ID] = stored
	return nil
}

func (c *Catalog) ListUnits(ctx context.Context) ([]*units.Unit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*units.Unit, 0, len(c.units))
	for _, u := range c.units {
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Schedule returns an empty schedule for units without seasonal rates.
func (c *Catalog) Schedule(ctx context.Context, unitID units.UnitID) (*units.SeasonalSchedule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schedules[unitID]
	if !ok {
		return units.NewSeasonalSchedule(unitID), nil
	}
	s.Rates = slices.Clone(s.Rates)
	return &s, nil
}

// SaveSchedule refuses a write based on an outdated version so two concurrent
// edits cannot both pass the overlap check.
func (c *Catalog) SaveSchedule(ctx context.Context, s *units.SeasonalSchedule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.schedules[s.UnitID]
	if ok && current.Version != s.Version {
		return apperr.ErrConcurrentUpdate
	}
	if !ok && s.Version != 0 {
		return apperr.ErrConcurrentUpdate
	}
	s.Version++
	stored := *s
	stored.Rates = slices.Clone(s.Rates)
	c.schedules[s.UnitID] = stored
	return nil
}

func (c *Catalog) Promotion(ctx context.Context, id string) (*units.Promotion, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.promotions[id]
	if !ok {
		return nil, units.ErrPromotionNotFound
	}
	p.UnitIDs = slices.Clone(p.UnitIDs)
	return &p, nil
}

func (c *Catalog) SavePromotion(ctx context.Context, p *units.Promotion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.Version++
	stored := *p
	stored.UnitIDs = slices.Clone(p.UnitIDs)
	c.promotions[p.ID] = stored
	return nil
}

func (c *Catalog) AddOn(ctx context.Context, id string) (*units.AddOn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.addOns[id]
	if !ok {
		return nil, units.ErrAddOnNotFound
	}
	return &a, nil
}

func (c *Catalog) SaveAddOn(ctx context.Context, a *units.AddOn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a.Version++
	c.addOns[a.ID] = *a
	return nil
}

var _ units.Catalog = (*Catalog)(nil)
