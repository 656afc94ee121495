package availability

import (
	"context"
	"errors"
	"time"

	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

// Index answers whether a unit is free and records blocks. Reserve is an
// atomic check-then-set per unit: two overlapping Reserve calls never both succeed.
type Index interface {
	Reserve(ctx context.Context, unitID units.UnitID, r daterange.DateRange, reason BlockReason, ref string) error
	Release(ctx context.Context, unitID units.UnitID, ref string) error
	IsFree(ctx context.Context, unitID units.UnitID, r daterange.DateRange) (bool, error)
	Blocks(ctx context.Context, unitID units.UnitID) ([]Block, error)
}

const defaultSaveAttempts = 5

// CalendarIndex implements Index on top of a versioned calendar Repository,
// retrying when a concurrent writer bumps the version first.
type CalendarIndex struct {
	Repo     Repository
	Attempts int
	Now      func() time.Time
}

func NewCalendarIndex(repo Repository) *CalendarIndex {
	return &CalendarIndex{Repo: repo}
}

func (x *CalendarIndex) Reserve(ctx context.Context, unitID units.UnitID, r daterange.DateRange, reason BlockReason, ref string) error {
	return x.mutate(ctx, unitID, func(c *Calendar) error {
		return c.Reserve(r, reason, ref, x.now())
	})
}

func (x *CalendarIndex) Release(ctx context.Context, unitID units.UnitID, ref string) error {
	return x.mutate(ctx, unitID, func(c *Calendar) error {
		_, err := c.Release(ref)
		return err
	})
}

func (x *CalendarIndex) IsFree(ctx context.Context, unitID units.UnitID, r daterange.DateRange) (bool, error) {
	c, err := x.Repo.Calendar(ctx, unitID)
	if err != nil {
		return false, err
	}
	return c.IsFree(r), nil
}

func (x *CalendarIndex) Blocks(ctx context.Context, unitID units.UnitID) ([]Block, error) {
	c, err := x.Repo.Calendar(ctx, unitID)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

func (x *CalendarIndex) mutate(ctx context.Context, unitID units.UnitID, fn func(c *Calendar) error) error {
	attempts := x.Attempts
	if attempts <= 0 {
		attempts = defaultSaveAttempts
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		c, err := x.Repo.Calendar(ctx, unitID)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		err = x.Repo.Save(ctx, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStaleCalendar) {
			return err
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (x *CalendarIndex) now() time.Time {
	if x.Now != nil {
		return x.Now()
	}
	return time.Now().UTC()
}

var _ Index = (*CalendarIndex)(nil)
