package units

import (
	"strings"
	"time"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/events"
	"roomstay/internal/domain/shared/money"
)

var (
	ErrUnitNotFound      = apperr.New(apperr.NotFound, "units: unit not found")
	ErrInvalidUnit       = apperr.New(apperr.Validation, "units: invalid unit definition")
	ErrUnknownMode       = apperr.New(apperr.Validation, "units: unknown pricing mode")
	ErrGuestsOutOfRange  = apperr.New(apperr.Validation, "units: guest count outside the unit's limits")
	ErrNightsOutOfRange  = apperr.New(apperr.Validation, "units: stay length outside the unit's limits")
	ErrRoomsOutOfRange   = apperr.New(apperr.Validation, "units: requested rooms exceed the unit's capacity")
	ErrNegativeRate      = apperr.New(apperr.Validation, "units: rates cannot be negative")
	ErrCheckInHourBounds = apperr.New(apperr.Validation, "units: check-in hour must be within 0..23")
)

type UnitID string

type PricingMode string

const (
	PerUnit          PricingMode = "per_unit"
	PerPerson        PricingMode = "per_person"
	PerPersonSharing PricingMode = "per_person_sharing"
)

func ParsePricingMode(raw string) (PricingMode, error) {
	switch mode := PricingMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case PerUnit, PerPerson, PerPersonSharing:
		return mode, nil
	case "":
		return PerUnit, nil
	default:
		return "", ErrUnknownMode
	}
}

// Unit is a rentable room or whole-property unit. Identity and property binding
// never change; rates and the pricing mode are owner-managed.
type Unit struct {
	ID         UnitID
	PropertyID PropertyID
	Name       string
	Currency   string

	BaseRateCents       int64
	Mode                PricingMode
	IncludedGuests      int
	ExtraGuestRateCents int64

	MinGuests   int
	MaxGuests   int
	MinNights   int
	MaxNights   int
	Rooms       int
	CheckInHour int
	PolicyID    string
	// DepositPercent is the share of the total needed to confirm; 0 means full payment.
	DepositPercent int

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

type CreateUnitParams struct {
	ID                  UnitID
	Property            *Property
	Name                string
	BaseRateCents       int64
	Mode                PricingMode
	IncludedGuests      int
	ExtraGuestRateCents int64
	MinGuests           int
	MaxGuests           int
	MinNights           int
	MaxNights           int
	Rooms               int
	CheckInHour         int
	PolicyID            string
	DepositPercent      int
	Now                 time.Time
}

func NewUnit(params CreateUnitParams) (*Unit, error) {
	if params.ID == "" || params.Property == nil {
		return nil, ErrInvalidUnit
	}
	mode := params.Mode
	if mode == "" {
		mode = PerUnit
	}
	if _, err := ParsePricingMode(string(mode)); err != nil {
		return nil, err
	}
	u := &Unit{
		ID:                  params.ID,
		PropertyID:          params.Property.ID,
		Name:                strings.TrimSpace(params.Name),
		Currency:            params.Property.Currency,
		BaseRateCents:       params.BaseRateCents,
		Mode:                mode,
		IncludedGuests:      params.IncludedGuests,
		ExtraGuestRateCents: params.ExtraGuestRateCents,
		MinGuests:           defaultInt(params.MinGuests, 1),
		MaxGuests:           params.MaxGuests,
		MinNights:           defaultInt(params.MinNights, 1),
		MaxNights:           params.MaxNights,
		Rooms:               defaultInt(params.Rooms, 1),
		CheckInHour:         params.CheckInHour,
		PolicyID:            params.PolicyID,
		DepositPercent:      params.DepositPercent,
		CreatedAt:           params.Now.UTC(),
		UpdatedAt:           params.Now.UTC(),
	}
	if u.PolicyID == "" {
		u.PolicyID = params.Property.DefaultPolicyID
	}
	if err := u.validate(); err != nil {
		return nil, err
	}
	u.Record(UnitCreated{UnitID: u.ID, PropertyID: u.PropertyID, Mode: u.Mode, BaseRate: u.BaseRate(), At: u.CreatedAt})
	return u, nil
}

func (u *Unit) validate() error {
	if u.BaseRateCents < 0 || u.ExtraGuestRateCents < 0 {
		return ErrNegativeRate
	}
	if u.MinGuests < 1 || (u.MaxGuests > 0 && u.MaxGuests < u.MinGuests) {
		return ErrInvalidUnit
	}
	if u.MinNights < 1 || (u.MaxNights > 0 && u.MaxNights < u.MinNights) {
		return ErrInvalidUnit
	}
	if u.Rooms < 1 || u.IncludedGuests < 0 {
		return ErrInvalidUnit
	}
	if u.CheckInHour < 0 || u.CheckInHour > 23 {
		return ErrCheckInHourBounds
	}
	if u.DepositPercent < 0 || u.DepositPercent > 100 {
		return ErrInvalidUnit
	}
	return nil
}

// Reprice changes the base rate and pricing mode. Bookings already holding a
// frozen quote are unaffected.
func (u *Unit) Reprice(baseRateCents int64, mode PricingMode, includedGuests int, extraGuestRateCents int64, now time.Time) error {
	if _, err := ParsePricingMode(string(mode)); err != nil {
		return err
	}
	next := *u
	next.BaseRateCents = baseRateCents
	next.Mode = mode
	next.IncludedGuests = includedGuests
	next.ExtraGuestRateCents = extraGuestRateCents
	if err := next.validate(); err != nil {
		return err
	}
	previous := u.BaseRate()
	u.BaseRateCents = baseRateCents
	u.Mode = mode
	u.IncludedGuests = includedGuests
	u.ExtraGuestRateCents = extraGuestRateCents
	u.UpdatedAt = now.UTC()
	u.Record(UnitRepriced{UnitID: u.ID, Previous: previous, Current: u.BaseRate(), Mode: mode, At: u.UpdatedAt})
	return nil
}

func (u *Unit) BaseRate() money.Money {
	return money.Money{Amount: u.BaseRateCents, Currency: u.Currency}
}

func (u *Unit) CheckGuests(guests int) error {
	if guests < u.MinGuests || (u.MaxGuests > 0 && guests > u.MaxGuests) {
		return ErrGuestsOutOfRange
	}
	return nil
}

func (u *Unit) CheckNights(nights int) error {
	if nights < u.MinNights || (u.MaxNights > 0 && nights > u.MaxNights) {
		return ErrNightsOutOfRange
	}
	return nil
}

func (u *Unit) CheckRooms(rooms int) error {
	if rooms < 1 || rooms > u.Rooms {
		return ErrRoomsOutOfRange
	}
	return nil
}

// DepositDue is the amount that confirms a booking with the given total.
func (u *Unit) DepositDue(totalCents int64) int64 {
	if u.DepositPercent == 0 || u.DepositPercent == 100 {
		return totalCents
	}
	return money.RoundRatio(totalCents, int64(u.DepositPercent), 100)
}

// CheckInAt is the instant a stay starting on date begins, in UTC.
func (u *Unit) CheckInAt(date time.Time) time.Time {
	d := date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), u.CheckInHour, 0, 0, 0, time.UTC)
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
