package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/units"
)

// Catalog stores owner-managed entities, one collection per kind. Documents
// embed the domain structs; only the seasonal schedule needs its own shape.
type Catalog struct {
	properties *mongo.Collection
	units      *mongo.Collection
	schedules  *mongo.Collection
	promotions *mongo.Collection
	addOns     *mongo.Collection
}

func NewCatalog(db *mongo.Database) *Catalog {
	return &Catalog{
		properties: db.Collection(colProperties),
		units:      db.Collection(colUnits),
		schedules:  db.Collection(colSchedules),
		promotions: db.Collection(colPromotions),
		addOns:     db.Collection(colAddOns),
	}
}

func (c *Catalog) Property(ctx context.Context, id units.PropertyID) (*units.Property, error) {
	var doc propertyDocument
	if err := findOne(ctx, c.properties, bson.M{"_id": string(id)}, &doc, units.ErrPropertyNotFound); err != nil {
		return nil, err
	}
	return &doc.Property, nil
}

func (c *Catalog) SaveProperty(ctx context.Context, p *units.Property) error {
	p.Version++
	return replaceByID(ctx, c.properties, string(p.ID), propertyDocument{ID: string(p.ID), Property: *p})
}

func (c *Catalog) Unit(ctx context.Context, id units.UnitID) (*units.Unit, error) {
	var doc unitDocument
	if err := findOne(ctx, c.units, bson.M{"_id": string(id)}, &doc, units.ErrUnitNotFound); err != nil {
		return nil, err
	}
	return doc.toUnit(), nil
}

func (c *Catalog) SaveUnit(ctx context.Context, u *units.Unit) error {
	u.Version++
	return replaceByID(ctx, c.units, string(u.ID), newUnitDocument(u))
}

func (c *Catalog) ListUnits(ctx context.Context) ([]*units.Unit, error) {
	cur, err := c.units.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []unitDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*units.Unit, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toUnit())
	}
	return out, nil
}

// Schedule returns an empty schedule for units without seasonal rates.
func (c *Catalog) Schedule(ctx context.Context, unitID units.UnitID) (*units.SeasonalSchedule, error) {
	var doc scheduleDocument
	err := c.schedules.FindOne(ctx, bson.M{"_id": string(unitID)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return units.NewSeasonalSchedule(unitID), nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toSchedule()
}

// SaveSchedule refuses a write based on an outdated version so two concurrent
// edits cannot both pass the overlap check.
func (c *Catalog) SaveSchedule(ctx context.Context, s *units.SeasonalSchedule) error {
	doc := newScheduleDocument(s)
	doc.Version = s.Version + 1
	if err := versionedUpsert(ctx, c.schedules, doc.ID, s.Version, doc, apperr.ErrConcurrentUpdate); err != nil {
		return err
	}
	s.Version = doc.Version
	return nil
}

func (c *Catalog) Promotion(ctx context.Context, id string) (*units.Promotion, error) {
	var doc promotionDocument
	if err := findOne(ctx, c.promotions, bson.M{"_id": id}, &doc, units.ErrPromotionNotFound); err != nil {
		return nil, err
	}
	return doc.toPromotion()
}

func (c *Catalog) SavePromotion(ctx context.Context, p *units.Promotion) error {
	p.Version++
	return replaceByID(ctx, c.promotions, p.ID, newPromotionDocument(p))
}

func (c *Catalog) AddOn(ctx context.Context, id string) (*units.AddOn, error) {
	var doc addOnDocument
	if err := findOne(ctx, c.addOns, bson.M{"_id": id}, &doc, units.ErrAddOnNotFound); err != nil {
		return nil, err
	}
	return &doc.AddOn, nil
}

func (c *Catalog) SaveAddOn(ctx context.Context, a *units.AddOn) error {
	a.Version++
	return replaceByID(ctx, c.addOns, a.ID, addOnDocument{ID: a.ID, AddOn: *a})
}

func replaceByID(ctx context.Context, col *mongo.Collection, id string, doc any) error {
	_, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

type propertyDocument struct {
	ID             string `bson:"_id"`
	units.Property `bson:",inline"`
}

type addOnDocument struct {
	ID          string `bson:"_id"`
	units.AddOn `bson:",inline"`
}

type unitDocument struct {
	ID                  string    `bson:"_id"`
	PropertyID          string    `bson:"property_id"`
	Name                string    `bson:"name"`
	Currency            string    `bson:"currency"`
	BaseRateCents       int64     `bson:"base_rate_cents"`
	Mode                string    `bson:"mode"`
	IncludedGuests      int       `bson:"included_guests"`
	ExtraGuestRateCents int64     `bson:"extra_guest_rate_cents"`
	MinGuests           int       `bson:"min_guests"`
	MaxGuests           int       `bson:"max_guests"`
	MinNights           int       `bson:"min_nights"`
	MaxNights           int       `bson:"max_nights"`
	Rooms               int       `bson:"rooms"`
	CheckInHour         int       `bson:"check_in_hour"`
	PolicyID            string    `bson:"policy_id,omitempty"`
	DepositPercent      int       `bson:"deposit_percent"`
	CreatedAt           time.Time `bson:"created_at"`
	UpdatedAt           time.Time `bson:"updated_at"`
	Version             int64     `bson:"version"`
}

func newUnitDocument(u *units.Unit) unitDocument {
	return unitDocument{
		ID:                  string(u.ID),
		PropertyID:          string(u.PropertyID),
		Name:                u.Name,
		Currency:            u.Currency,
		BaseRateCents:       u.BaseRateCents,
		Mode:                string(u.Mode),
		IncludedGuests:      u.IncludedGuests,
		ExtraGuestRateCents: u.ExtraGuestRateCents,
		MinGuests:           u.MinGuests,
		MaxGuests:           u.MaxGuests,
		MinNights:           u.MinNights,
		MaxNights:           u.MaxNights,
		Rooms:               u.Rooms,
		CheckInHour:         u.CheckInHour,
		PolicyID:            u.PolicyID,
		DepositPercent:      u.DepositPercent,
		CreatedAt:           u.CreatedAt.UTC(),
		UpdatedAt:           u.UpdatedAt.UTC(),
		Version:             u.Version,
	}
}

func (d unitDocument) toUnit() *units.Unit {
	return &units.Unit{
		ID:                  units.UnitID(d.ID),
		PropertyID:          units.PropertyID(d.PropertyID),
		Name:                d.Name,
		Currency:            d.Currency,
		BaseRateCents:       d.BaseRateCents,
		Mode:                units.PricingMode(d.Mode),
		IncludedGuests:      d.IncludedGuests,
		ExtraGuestRateCents: d.ExtraGuestRateCents,
		MinGuests:           d.MinGuests,
		MaxGuests:           d.MaxGuests,
		MinNights:           d.MinNights,
		MaxNights:           d.MaxNights,
		Rooms:               d.Rooms,
		CheckInHour:         d.CheckInHour,
		PolicyID:            d.PolicyID,
		DepositPercent:      d.DepositPercent,
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
		Version:             d.Version,
	}
}

type scheduleDocument struct {
	ID      string         `bson:"_id"`
	Rates   []rateDocument `bson:"rates"`
	Version int64          `bson:"version"`
}

type rateDocument struct {
	ID        string        `bson:"id"`
	Range     rangeDocument `bson:"range"`
	RateCents int64         `bson:"rate_cents"`
}

func newScheduleDocument(s *units.SeasonalSchedule) scheduleDocument {
	doc := scheduleDocument{ID: string(s.UnitID), Rates: make([]rateDocument, 0, len(s.Rates)), Version: s.Version}
	for _, r := range s.Rates {
		doc.Rates = append(doc.Rates, rateDocument{ID: r.ID, Range: newRangeDocument(r.Range), RateCents: r.RateCents})
	}
	return doc
}

func (d scheduleDocument) toSchedule() (*units.SeasonalSchedule, error) {
	s := &units.SeasonalSchedule{UnitID: units.UnitID(d.ID), Version: d.Version}
	for _, r := range d.Rates {
		dr, err := r.Range.toRange()
		if err != nil {
			return nil, fmt.Errorf("%w: schedule %s: %w", errCorruptDocument, d.ID, err)
		}
		s.Rates = append(s.Rates, units.SeasonalRate{ID: r.ID, UnitID: s.UnitID, Range: dr, RateCents: r.RateCents})
	}
	return s, nil
}

type promotionDocument struct {
	ID          string        `bson:"_id"`
	PropertyID  string        `bson:"property_id"`
	UnitIDs     []string      `bson:"unit_ids"`
	Kind        string        `bson:"kind"`
	PercentBps  int64         `bson:"percent_bps"`
	AmountCents int64         `bson:"amount_cents"`
	Valid       rangeDocument `bson:"valid"`
	MinNights   int           `bson:"min_nights"`
	Active      bool          `bson:"active"`
	Version     int64         `bson:"version"`
}

func newPromotionDocument(p *units.Promotion) promotionDocument {
	ids := make([]string, 0, len(p.UnitIDs))
	for _, id := range p.UnitIDs {
		ids = append(ids, string(id))
	}
	return promotionDocument{
		ID:          p.ID,
		PropertyID:  string(p.PropertyID),
		UnitIDs:     ids,
		Kind:        string(p.Kind),
		PercentBps:  p.PercentBps,
		AmountCents: p.AmountCents,
		Valid:       newRangeDocument(p.Valid),
		MinNights:   p.MinNights,
		Active:      p.Active,
		Version:     p.Version,
	}
}

func (d promotionDocument) toPromotion() (*units.Promotion, error) {
	valid, err := d.Valid.toRange()
	if err != nil {
		return nil, fmt.Errorf("%w: promotion %s: %w", errCorruptDocument, d.ID, err)
	}
	p := &units.Promotion{
		ID:          d.ID,
		PropertyID:  units.PropertyID(d.PropertyID),
		Kind:        units.DiscountKind(d.Kind),
		PercentBps:  d.PercentBps,
		AmountCents: d.AmountCents,
		Valid:       valid,
		MinNights:   d.MinNights,
		Active:      d.Active,
		Version:     d.Version,
	}
	for _, id := range d.UnitIDs {
		p.UnitIDs = append(p.UnitIDs, units.UnitID(id))
	}
	return p, nil
}

var _ units.Catalog = (*Catalog)(nil)
