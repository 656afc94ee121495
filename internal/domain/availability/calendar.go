package availability

import (
	"context"
	"errors"
	"sort"
	"time"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

var (
	ErrOverlappingRange = apperr.New(apperr.Conflict, "availability: range overlaps with an existing block")
	ErrBlockNotFound    = apperr.New(apperr.NotFound, "availability: block not found")
	ErrDuplicateRef     = apperr.New(apperr.Conflict, "availability: reference already holds a block")
	// ErrStaleCalendar is returned by repositories when a concurrent writer saved first.
	ErrStaleCalendar = errors.New("availability: calendar was modified concurrently")
)

type BlockReason string

const (
	ReasonBooking BlockReason = "booking"
	ReasonManual  BlockReason = "manual"
)

type Block struct {
	UnitID    units.UnitID
	Range     daterange.DateRange
	Reason    BlockReason
	Reference string
	CreatedAt time.Time
}

// Calendar is the set of blocks held on one unit. Blocks never overlap.
type Calendar struct {
	UnitID  units.UnitID
	Blocks  []Block
	Version int64
}

// Repository persists calendars; Save must fail with ErrStaleCalendar when the
// stored version moved past c.Version.
type Repository interface {
	Calendar(ctx context.Context, unitID units.UnitID) (*Calendar, error)
	Save(ctx context.Context, c *Calendar) error
}

func NewCalendar(unitID units.UnitID) *Calendar {
	return &Calendar{UnitID: unitID}
}

func (c *Calendar) IsFree(r daterange.DateRange) bool {
	for _, block := range c.Blocks {
		if block.Range.Overlaps(r) {
			return false
		}
	}
	return true
}

// Reserve adds a block for ref over r. Re-reserving the identical range for the
// same reference is a no-op.
func (c *Calendar) Reserve(r daterange.DateRange, reason BlockReason, ref string, now time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if existing, ok := c.Find(ref); ok {
		if existing.Range.Equal(r) {
			return nil
		}
		return ErrDuplicateRef
	}
	if !c.IsFree(r) {
		return ErrOverlappingRange
	}
	c.Blocks = append(c.Blocks, Block{UnitID: c.UnitID, Range: r, Reason: reason, Reference: ref, CreatedAt: now.UTC()})
	sort.Slice(c.Blocks, func(i, j int) bool {
		return c.Blocks[i].Range.CheckIn.Before(c.Blocks[j].Range.CheckIn)
	})
	return nil
}

func (c *Calendar) Release(ref string) (Block, error) {
	for i, block := range c.Blocks {
		if block.Reference == ref {
			c.Blocks = append(c.Blocks[:i], c.Blocks[i+1:]...)
			return block, nil
		}
	}
	return Block{}, ErrBlockNotFound
}

func (c *Calendar) Find(ref string) (Block, bool) {
	for _, block := range c.Blocks {
		if block.Reference == ref {
			return block, true
		}
	}
	return Block{}, false
}

func (c *Calendar) Snapshot() []Block {
	return append([]Block(nil), c.Blocks...)
}
