package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/shared/money"
	"roomstay/internal/domain/units"
)

var (
	ErrCurrencyInvariant = apperr.New(apperr.Invariant, "pricing: unit currency differs from its property")
	ErrDuplicateAddOn    = apperr.New(apperr.Validation, "pricing: add-on requested twice")
	ErrMissingUnit       = apperr.New(apperr.Validation, "pricing: unit and property are required")
	ErrStayTooLong       = apperr.New(apperr.Validation, "pricing: stay exceeds the maximum length")
)

// DefaultMaxStayNights caps every quote, whatever the unit's own MaxNights.
const DefaultMaxStayNights = 365

// QuoteInput is everything the engine needs; it never reads storage itself.
type QuoteInput struct {
	Property  *units.Property
	Unit      *units.Unit
	Schedule  *units.SeasonalSchedule
	Stay      daterange.DateRange
	Guests    int
	Rooms     int
	AddOns    []*units.AddOn
	Promotion *units.Promotion
	// ClientDiscountCents is the discount the client believes applies. It is
	// only compared against the server-side value and never trusted.
	ClientDiscountCents *int64
}

// Engine computes itemized quotes. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	Resolver Resolver
	Logger   *slog.Logger
	// MaxStayNights of zero means DefaultMaxStayNights.
	MaxStayNights int
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{Logger: logger}
}

func (e *Engine) maxStayNights() int {
	if e.MaxStayNights > 0 {
		return e.MaxStayNights
	}
	return DefaultMaxStayNights
}

func (e *Engine) Quote(ctx context.Context, in QuoteInput) (Quote, error) {
	if in.Unit == nil || in.Property == nil {
		return Quote{}, ErrMissingUnit
	}
	unit := in.Unit
	if unit.Currency != in.Property.Currency || unit.PropertyID != in.Property.ID {
		return Quote{}, ErrCurrencyInvariant
	}
	if err := in.Stay.Validate(); err != nil {
		return Quote{}, err
	}
	rooms := in.Rooms
	if rooms == 0 {
		rooms = 1
	}
	nights := in.Stay.Nights()
	if limit := e.maxStayNights(); nights > limit {
		return Quote{}, fmt.Errorf("%w: %d nights, at most %d", ErrStayTooLong, nights, limit)
	}
	if err := unit.CheckGuests(in.Guests); err != nil {
		return Quote{}, err
	}
	if err := unit.CheckNights(nights); err != nil {
		return Quote{}, err
	}
	if err := unit.CheckRooms(rooms); err != nil {
		return Quote{}, err
	}

	b := Breakdown{
		UnitID:     string(unit.ID),
		PropertyID: string(unit.PropertyID),
		Currency:   unit.Currency,
		CheckIn:    in.Stay.CheckIn.Format(daterange.DateLayout),
		CheckOut:   in.Stay.CheckOut.Format(daterange.DateLayout),
		Nights:     nights,
		Guests:     in.Guests,
		Rooms:      rooms,
		Mode:       string(unit.Mode),
		TaxRateBps: in.Property.TaxRateBps,
	}

	for _, night := range in.Stay.EachNight() {
		rate := e.Resolver.RateFor(unit, in.Schedule, night)
		qty, amount := nightAmount(unit, rate.RateCents, in.Guests, rooms)
		b.Lines = append(b.Lines, Line{
			Kind:        LineNight,
			Code:        night.Format(daterange.DateLayout),
			Source:      rate.Source,
			Quantity:    qty,
			UnitCents:   rate.RateCents,
			AmountCents: amount,
		})
		b.RoomCents += amount
	}

	addOns, err := sortedAddOns(unit, in.AddOns)
	if err != nil {
		return Quote{}, err
	}
	for _, a := range addOns {
		qty := a.Quantity(nights, in.Guests, rooms)
		amount := a.PriceCents * qty
		b.Lines = append(b.Lines, Line{Kind: LineAddOn, Code: a.ID, Source: string(a.Pricing), Quantity: qty, UnitCents: a.PriceCents, AmountCents: amount})
		b.AddOnCents += amount
		b.AddOnIDs = append(b.AddOnIDs, a.ID)
	}

	gross := b.RoomCents + b.AddOnCents
	if in.Promotion != nil {
		if err := in.Promotion.CheckApplicable(unit.ID, in.Stay); err != nil {
			return Quote{}, err
		}
		off := in.Promotion.Discount(money.Money{Amount: gross, Currency: b.Currency})
		b.DiscountCents = off.Amount
		b.PromotionID = in.Promotion.ID
		b.Lines = append(b.Lines, Line{Kind: LinePromotion, Code: in.Promotion.ID, Source: string(in.Promotion.Kind), Quantity: 1, UnitCents: -off.Amount, AmountCents: -off.Amount})
	}
	if in.ClientDiscountCents != nil && *in.ClientDiscountCents != b.DiscountCents && e.Logger != nil {
		e.Logger.WarnContext(ctx, "client discount hint ignored", "unit_id", unit.ID, "client_cents", *in.ClientDiscountCents, "server_cents", b.DiscountCents)
	}

	b.SubtotalCents = gross - b.DiscountCents
	if b.SubtotalCents < 0 {
		b.SubtotalCents = 0
	}
	b.TaxCents = money.RoundRatio(b.SubtotalCents, b.TaxRateBps, 10000)
	if b.TaxRateBps > 0 {
		b.Lines = append(b.Lines, Line{Kind: LineTax, Code: "tax", Quantity: 1, UnitCents: b.TaxCents, AmountCents: b.TaxCents})
	}
	b.TotalCents = b.SubtotalCents + b.TaxCents

	digest, err := digestOf(b)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Breakdown: b, Digest: digest}, nil
}

// nightAmount applies the pricing mode to one night's rate.
func nightAmount(unit *units.Unit, rate int64, guests, rooms int) (qty int64, amount int64) {
	switch unit.Mode {
	case units.PerPerson:
		return int64(guests), rate * int64(guests)
	case units.PerPersonSharing:
		included := unit.IncludedGuests
		if included < 1 {
			included = 1
		}
		extraRate := unit.ExtraGuestRateCents
		if extraRate == 0 {
			extraRate = rate
		}
		extra := guests - included
		if extra < 0 {
			extra = 0
		}
		return int64(guests), rate + extraRate*int64(extra)
	default:
		return int64(rooms), rate * int64(rooms)
	}
}

func sortedAddOns(unit *units.Unit, in []*units.AddOn) ([]*units.AddOn, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]*units.AddOn, 0, len(in))
	for _, a := range in {
		if a == nil {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			return nil, ErrDuplicateAddOn
		}
		seen[a.ID] = struct{}{}
		if !a.OfferedFor(unit) {
			return nil, units.ErrAddOnNotApplicable
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
