package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/units"
)

// CalendarRepository keeps one document per unit. Save is a compare-and-swap
// on version, so CalendarIndex.Reserve stays atomic across instances.
type CalendarRepository struct {
	col *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	return &CalendarRepository{col: db.Collection(colCalendars)}
}

func (r *CalendarRepository) Calendar(ctx context.Context, unitID units.UnitID) (*availability.Calendar, error) {
	var doc calendarDocument
	err := findOne(ctx, r.col, bson.M{"_id": string(unitID)}, &doc, errCalendarMissing)
	if errors.Is(err, errCalendarMissing) {
		return availability.NewCalendar(unitID), nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toCalendar()
}

func (r *CalendarRepository) Save(ctx context.Context, c *availability.Calendar) error {
	doc := newCalendarDocument(c)
	doc.Version = c.Version + 1
	if err := versionedUpsert(ctx, r.col, doc.ID, c.Version, doc, availability.ErrStaleCalendar); err != nil {
		return err
	}
	c.Version = doc.Version
	return nil
}

var errCalendarMissing = errors.New("mongo: calendar missing")

type calendarDocument struct {
	ID      string          `bson:"_id"`
	Blocks  []blockDocument `bson:"blocks"`
	Version int64           `bson:"version"`
}

type blockDocument struct {
	Range     rangeDocument `bson:"range"`
	Reason    string        `bson:"reason"`
	Reference string        `bson:"reference"`
	CreatedAt time.Time     `bson:"created_at"`
}

func newCalendarDocument(c *availability.Calendar) calendarDocument {
	doc := calendarDocument{ID: string(c.UnitID), Blocks: make([]blockDocument, 0, len(c.Blocks)), Version: c.Version}
	for _, b := range c.Blocks {
		doc.Blocks = append(doc.Blocks, blockDocument{
			Range:     newRangeDocument(b.Range),
			Reason:    string(b.Reason),
			Reference: b.Reference,
			CreatedAt: b.CreatedAt.UTC(),
		})
	}
	return doc
}

func (d calendarDocument) toCalendar() (*availability.Calendar, error) {
	c := &availability.Calendar{UnitID: units.UnitID(d.ID), Version: d.Version}
	for _, b := range d.Blocks {
		r, err := b.Range.toRange()
		if err != nil {
			return nil, fmt.Errorf("%w: calendar %s: %w", errCorruptDocument, d.ID, err)
		}
		c.Blocks = append(c.Blocks, availability.Block{
			UnitID:    c.UnitID,
			Range:     r,
			Reason:    availability.BlockReason(b.Reason),
			Reference: b.Reference,
			CreatedAt: b.CreatedAt.UTC(),
		})
	}
	return c, nil
}

var _ availability.Repository = (*CalendarRepository)(nil)
