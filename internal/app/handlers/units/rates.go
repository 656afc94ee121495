package units

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	handlersupport "roomstay/internal/app/handlers/support"
	"roomstay/internal/app/middleware"
	"roomstay/internal/domain/cancellation"
	domainrange "roomstay/internal/domain/shared/daterange"
	domainunits "roomstay/internal/domain/units"
)

const (
	addSeasonalRateKey    = "catalog.seasonal.add"
	removeSeasonalRateKey = "catalog.seasonal.remove"
	upsertPromotionKey    = "catalog.promotions.upsert"
	upsertAddOnKey        = "catalog.addons.upsert"
	setPolicyKey          = "catalog.policies.set"
)

var ownerRoles = []string{middleware.RoleOwner, middleware.RoleOperator}

type AddSeasonalRateCommand struct {
	Owner     Owner
	UnitID    string `validate:"required"`
	From      string `validate:"required"`
	To        string `validate:"required"`
	RateCents int64  `validate:"gte=0"`
}

func (c AddSeasonalRateCommand) Key() string { return addSeasonalRateKey }

func (c AddSeasonalRateCommand) AllowedRoles() []string { return ownerRoles }

type AddSeasonalRateHandler struct {
	Writer
}

func (h *AddSeasonalRateHandler) Handle(ctx context.Context, cmd AddSeasonalRateCommand) (*dto.Created, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	u, _, err := ownedUnit(ctx, unit.Catalog(), domainunits.UnitID(cmd.UnitID), cmd.Owner)
	if err != nil {
		return nil, err
	}
	window, err := domainrange.Parse(cmd.From, cmd.To)
	if err != nil {
		return nil, err
	}
	schedule, err := unit.Catalog().Schedule(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	rate := domainunits.SeasonalRate{ID: "sr-" + uuid.NewString(), Range: window, RateCents: cmd.RateCents}
	if err := schedule.Add(rate); err != nil {
		return nil, err
	}
	if err := unit.Catalog().SaveSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	h.info(ctx, "seasonal rate added", "unit_id", u.ID, "rate_id", rate.ID, "range", window.String())
	return &dto.Created{ID: rate.ID}, nil
}

type RemoveSeasonalRateCommand struct {
	Owner  Owner
	UnitID string `validate:"required"`
	RateID string `validate:"required"`
}

func (c RemoveSeasonalRateCommand) Key() string { return removeSeasonalRateKey }

func (c RemoveSeasonalRateCommand) AllowedRoles() []string { return ownerRoles }

type RemoveSeasonalRateHandler struct {
	Writer
}

func (h *RemoveSeasonalRateHandler) Handle(ctx context.Context, cmd RemoveSeasonalRateCommand) (*dto.Created, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	u, _, err := ownedUnit(ctx, unit.Catalog(), domainunits.UnitID(cmd.UnitID), cmd.Owner)
	if err != nil {
		return nil, err
	}
	schedule, err := unit.Catalog().Schedule(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if err := schedule.Remove(cmd.RateID); err != nil {
		return nil, err
	}
	if err := unit.Catalog().SaveSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	return &dto.Created{ID: cmd.RateID}, nil
}

type UpsertPromotionCommand struct {
	Owner       Owner
	ID          string
	PropertyID  string   `validate:"required"`
	UnitIDs     []string `validate:"required,min=1,dive,required"`
	Kind        string   `validate:"required,oneof=percent fixed"`
	PercentBps  int64    `validate:"gte=0,lte=10000"`
	AmountCents int64    `validate:"gte=0"`
	ValidFrom   string   `validate:"required"`
	ValidTo     string   `validate:"required"`
	MinNights   int      `validate:"gte=0"`
	Active      bool
}

func (c UpsertPromotionCommand) Key() string { return upsertPromotionKey }

func (c UpsertPromotionCommand) AllowedRoles() []string { return ownerRoles }

type UpsertPromotionHandler struct {
	Writer
}

func (h *UpsertPromotionHandler) Handle(ctx context.Context, cmd UpsertPromotionCommand) (*dto.Created, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	prop, err := ownedProperty(ctx, unit.Catalog(), domainunits.PropertyID(cmd.PropertyID), cmd.Owner)
	if err != nil {
		return nil, err
	}
	valid, err := domainrange.Parse(cmd.ValidFrom, cmd.ValidTo)
	if err != nil {
		return nil, err
	}
	unitIDs := make([]domainunits.UnitID, 0, len(cmd.UnitIDs))
	for _, id := range cmd.UnitIDs {
		u, err := unit.Catalog().Unit(ctx, domainunits.UnitID(id))
		if err != nil {
			return nil, err
		}
		if u.PropertyID != prop.ID {
			return nil, domainunits.ErrInvalidPromotion
		}
		unitIDs = append(unitIDs, u.ID)
	}
	promo := &domainunits.Promotion{ID: strings.TrimSpace(cmd.ID)}
	if promo.ID == "" {
		promo.ID = "promo-" + uuid.NewString()
	} else if existing, err := unit.Catalog().Promotion(ctx, promo.ID); err == nil {
		if existing.PropertyID != prop.ID {
			return nil, domainunits.ErrInvalidPromotion
		}
		promo.Version = existing.Version
	}
	promo.PropertyID = prop.ID
	promo.UnitIDs = unitIDs
	promo.Kind = domainunits.DiscountKind(cmd.Kind)
	promo.PercentBps = cmd.PercentBps
	promo.AmountCents = cmd.AmountCents
	promo.Valid = valid
	promo.MinNights = cmd.MinNights
	promo.Active = cmd.Active
	if err := promo.Validate(); err != nil {
		return nil, err
	}
	if err := unit.Catalog().SavePromotion(ctx, promo); err != nil {
		return nil, err
	}
	h.info(ctx, "promotion saved", "promotion_id", promo.ID, "property_id", prop.ID, "active", promo.Active)
	return &dto.Created{ID: promo.ID}, nil
}

type UpsertAddOnCommand struct {
	Owner      Owner
	ID         string
	PropertyID string `validate:"required"`
	UnitID     string
	Name       string `validate:"required,max=200"`
	Pricing    string `validate:"required,oneof=per_booking per_night per_guest per_room"`
	PriceCents int64  `validate:"gte=0"`
	Active     bool
}

func (c UpsertAddOnCommand) Key() string { return upsertAddOnKey }

func (c UpsertAddOnCommand) AllowedRoles() []string { return ownerRoles }

type UpsertAddOnHandler struct {
	Writer
}

func (h *UpsertAddOnHandler) Handle(ctx context.Context, cmd UpsertAddOnCommand) (*dto.Created, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	prop, err := ownedProperty(ctx, unit.Catalog(), domainunits.PropertyID(cmd.PropertyID), cmd.Owner)
	if err != nil {
		return nil, err
	}
	if cmd.UnitID != "" {
		u, err := unit.Catalog().Unit(ctx, domainunits.UnitID(cmd.UnitID))
		if err != nil {
			return nil, err
		}
		if u.PropertyID != prop.ID {
			return nil, domainunits.ErrInvalidAddOn
		}
	}
	addOn := &domainunits.AddOn{ID: strings.TrimSpace(cmd.ID)}
	if addOn.ID == "" {
		addOn.ID = "addon-" + uuid.NewString()
	} else if existing, err := unit.Catalog().AddOn(ctx, addOn.ID); err == nil {
		if existing.PropertyID != prop.ID {
			return nil, domainunits.ErrInvalidAddOn
		}
		addOn.Version = existing.Version
	}
	addOn.PropertyID = prop.ID
	addOn.UnitID = domainunits.UnitID(cmd.UnitID)
	addOn.Name = strings.TrimSpace(cmd.Name)
	addOn.Pricing = domainunits.AddOnPricing(cmd.Pricing)
	addOn.PriceCents = cmd.PriceCents
	addOn.Active = cmd.Active
	if err := addOn.Validate(); err != nil {
		return nil, err
	}
	if err := unit.Catalog().SaveAddOn(ctx, addOn); err != nil {
		return nil, err
	}
	return &dto.Created{ID: addOn.ID}, nil
}

type PolicyTier struct {
	MinHoursBeforeCheckIn int `json:"min_hours_before_checkin" validate:"gte=0"`
	RefundPercent         int `json:"refund_percent" validate:"gte=0,lte=100"`
}

// SetCancellationPolicyCommand stores a policy and attaches it to a unit, or
// as the default of a property when UnitID is empty. Bookings already held
// keep the policy they were created under.
type SetCancellationPolicyCommand struct {
	Owner      Owner
	PolicyID   string `validate:"required,max=64"`
	PropertyID string `validate:"required"`
	UnitID     string
	Tiers      []PolicyTier `validate:"required,min=1,dive"`
}

func (c SetCancellationPolicyCommand) Key() string { return setPolicyKey }

func (c SetCancellationPolicyCommand) AllowedRoles() []string { return ownerRoles }

type SetCancellationPolicyHandler struct {
	Writer
}

func (h *SetCancellationPolicyHandler) Handle(ctx context.Context, cmd SetCancellationPolicyCommand) (*dto.Policy, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	prop, err := ownedProperty(ctx, unit.Catalog(), domainunits.PropertyID(cmd.PropertyID), cmd.Owner)
	if err != nil {
		return nil, err
	}
	tiers := make([]cancellation.Tier, 0, len(cmd.Tiers))
	for _, t := range cmd.Tiers {
		tiers = append(tiers, cancellation.Tier{MinHoursBeforeCheckIn: t.MinHoursBeforeCheckIn, RefundPercent: t.RefundPercent})
	}
	scope := "property"
	if cmd.UnitID != "" {
		scope = "unit"
	}
	policy, err := cancellation.NewPolicy(cmd.PolicyID, scope, tiers)
	if err != nil {
		return nil, err
	}
	if existing, err := unit.Policies().Policy(ctx, policy.ID); err == nil {
		policy.Version = existing.Version
	}
	if err := unit.Policies().Save(ctx, policy); err != nil {
		return nil, err
	}
	if cmd.UnitID == "" {
		prop.DefaultPolicyID = policy.ID
		if err := unit.Catalog().SaveProperty(ctx, prop); err != nil {
			return nil, err
		}
	} else {
		u, err := unit.Catalog().Unit(ctx, domainunits.UnitID(cmd.UnitID))
		if err != nil {
			return nil, err
		}
		if u.PropertyID != prop.ID {
			return nil, domainunits.ErrInvalidUnit
		}
		u.PolicyID = policy.ID
		if err := unit.Catalog().SaveUnit(ctx, u); err != nil {
			return nil, err
		}
	}
	h.info(ctx, "cancellation policy set", "policy_id", policy.ID, "property_id", prop.ID, "unit_id", cmd.UnitID)
	result := dto.MapPolicy(policy)
	return &result, nil
}

var (
	_ commands.Handler[AddSeasonalRateCommand, *dto.Created]      = (*AddSeasonalRateHandler)(nil)
	_ commands.Handler[RemoveSeasonalRateCommand, *dto.Created]   = (*RemoveSeasonalRateHandler)(nil)
	_ commands.Handler[UpsertPromotionCommand, *dto.Created]      = (*UpsertPromotionHandler)(nil)
	_ commands.Handler[UpsertAddOnCommand, *dto.Created]          = (*UpsertAddOnHandler)(nil)
	_ commands.Handler[SetCancellationPolicyCommand, *dto.Policy] = (*SetCancellationPolicyHandler)(nil)
)
