package units

import (
	"context"
	"time"

	"github.com/google/uuid"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	handlersupport "roomstay/internal/app/handlers/support"
	"roomstay/internal/app/middleware"
	domainunits "roomstay/internal/domain/units"
)

const (
	createPropertyKey = "catalog.properties.create"
	createUnitKey     = "catalog.units.create"
	repriceUnitKey    = "catalog.units.reprice"
)

type CreatePropertyCommand struct {
	Owner           Owner
	Name            string `validate:"required,max=200"`
	Currency        string `validate:"required,len=3"`
	TaxRateBps      int64  `validate:"gte=0,lte=10000"`
	DefaultPolicyID string
}

func (c CreatePropertyCommand) Key() string { return createPropertyKey }

func (c CreatePropertyCommand) AllowedRoles() []string {
	return []string{middleware.RoleOwner, middleware.RoleOperator}
}

type CreatePropertyHandler struct {
	Writer
}

func (h *CreatePropertyHandler) Handle(ctx context.Context, cmd CreatePropertyCommand) (*dto.Property, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if cmd.DefaultPolicyID != "" {
		if _, err := unit.Policies().Policy(ctx, cmd.DefaultPolicyID); err != nil {
			return nil, err
		}
	}
	prop, err := domainunits.NewProperty(domainunits.CreatePropertyParams{
		ID:              domainunits.PropertyID(uuid.NewString()),
		OwnerID:         cmd.Owner.ID,
		Name:            cmd.Name,
		Currency:        cmd.Currency,
		TaxRateBps:      cmd.TaxRateBps,
		DefaultPolicyID: cmd.DefaultPolicyID,
		Now:             time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Catalog().SaveProperty(ctx, prop); err != nil {
		return nil, err
	}
	h.info(ctx, "property created", "property_id", prop.ID, "owner_id", prop.OwnerID)
	result := dto.MapProperty(prop)
	return &result, nil
}

type CreateUnitCommand struct {
	Owner               Owner
	PropertyID          string `validate:"required"`
	Name                string `validate:"required,max=200"`
	BaseRateCents       int64  `validate:"gte=0"`
	PricingMode         string `validate:"omitempty,oneof=per_unit per_person per_person_sharing"`
	IncludedGuests      int    `validate:"gte=0"`
	ExtraGuestRateCents int64  `validate:"gte=0"`
	MinGuests           int    `validate:"gte=0"`
	MaxGuests           int    `validate:"gte=0"`
	MinNights           int    `validate:"gte=0"`
	MaxNights           int    `validate:"gte=0"`
	Rooms               int    `validate:"gte=0"`
	CheckInHour         int    `validate:"gte=0,lte=23"`
	PolicyID            string
	DepositPercent      int `validate:"gte=0,lte=100"`
}

func (c CreateUnitCommand) Key() string { return createUnitKey }

func (c CreateUnitCommand) AllowedRoles() []string {
	return []string{middleware.RoleOwner, middleware.RoleOperator}
}

type CreateUnitHandler struct {
	Writer
}

func (h *CreateUnitHandler) Handle(ctx context.Context, cmd CreateUnitCommand) (*dto.Unit, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	prop, err := ownedProperty(ctx, unit.Catalog(), domainunits.PropertyID(cmd.PropertyID), cmd.Owner)
	if err != nil {
		return nil, err
	}
	mode, err := domainunits.ParsePricingMode(cmd.PricingMode)
	if err != nil {
		return nil, err
	}
	if cmd.PolicyID != "" {
		if _, err := unit.Policies().Policy(ctx, cmd.PolicyID); err != nil {
			return nil, err
		}
	}
	u, err := domainunits.NewUnit(domainunits.CreateUnitParams{
		ID:                  domainunits.UnitID(uuid.NewString()),
		Property:            prop,
		Name:                cmd.Name,
		BaseRateCents:       cmd.BaseRateCents,
		Mode:                mode,
		IncludedGuests:      cmd.IncludedGuests,
		ExtraGuestRateCents: cmd.ExtraGuestRateCents,
		MinGuests:           cmd.MinGuests,
		MaxGuests:           cmd.MaxGuests,
		MinNights:           cmd.MinNights,
		MaxNights:           cmd.MaxNights,
		Rooms:               cmd.Rooms,
		CheckInHour:         cmd.CheckInHour,
		PolicyID:            cmd.PolicyID,
		DepositPercent:      cmd.DepositPercent,
		Now:                 time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Catalog().SaveUnit(ctx, u); err != nil {
		return nil, err
	}
	if err := h.publish(ctx, u.Drain()); err != nil {
		return nil, err
	}
	h.info(ctx, "unit created", "unit_id", u.ID, "property_id", u.PropertyID, "mode", u.Mode)
	result := dto.MapUnit(u)
	return &result, nil
}

// RepriceUnitCommand changes the base rate and pricing mode. Held and
// confirmed bookings keep their frozen quote.
type RepriceUnitCommand struct {
	Owner               Owner
	UnitID              string `validate:"required"`
	BaseRateCents       int64  `validate:"gte=0"`
	PricingMode         string `validate:"omitempty,oneof=per_unit per_person per_person_sharing"`
	IncludedGuests      int    `validate:"gte=0"`
	ExtraGuestRateCents int64  `validate:"gte=0"`
}

func (c RepriceUnitCommand) Key() string { return repriceUnitKey }

func (c RepriceUnitCommand) AllowedRoles() []string {
	return []string{middleware.RoleOwner, middleware.RoleOperator}
}

type RepriceUnitHandler struct {
	Writer
}

func (h *RepriceUnitHandler) Handle(ctx context.Context, cmd RepriceUnitCommand) (*dto.Unit, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	u, _, err := ownedUnit(ctx, unit.Catalog(), domainunits.UnitID(cmd.UnitID), cmd.Owner)
	if err != nil {
		return nil, err
	}
	mode, err := domainunits.ParsePricingMode(cmd.PricingMode)
	if err != nil {
		return nil, err
	}
	if err := u.Reprice(cmd.BaseRateCents, mode, cmd.IncludedGuests, cmd.ExtraGuestRateCents, time.Now()); err != nil {
		return nil, err
	}
	if err := unit.Catalog().SaveUnit(ctx, u); err != nil {
		return nil, err
	}
	if err := h.publish(ctx, u.Drain()); err != nil {
		return nil, err
	}
	result := dto.MapUnit(u)
	return &result, nil
}

var (
	_ commands.Handler[CreatePropertyCommand, *dto.Property] = (*CreatePropertyHandler)(nil)
	_ commands.Handler[CreateUnitCommand, *dto.Unit]         = (*CreateUnitHandler)(nil)
	_ commands.Handler[RepriceUnitCommand, *dto.Unit]        = (*RepriceUnitHandler)(nil)
)
