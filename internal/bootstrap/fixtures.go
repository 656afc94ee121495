package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	unitsapp "roomstay/internal/app/handlers/units"
	"roomstay/internal/app/middleware"
)

type propertyFixture struct {
	OwnerID    string          `json:"owner_id"`
	Name       string          `json:"name"`
	Currency   string          `json:"currency"`
	TaxRateBps int64           `json:"tax_rate_bps"`
	Policies   []policyFixture `json:"policies"`
	Units      []unitFixture   `json:"units"`
}

type policyFixture struct {
	ID    string                `json:"id"`
	Tiers []unitsapp.PolicyTier `json:"tiers"`
}

type unitFixture struct {
	Name                string `json:"name"`
	BaseRateCents       int64  `json:"base_rate_cents"`
	PricingMode         string `json:"pricing_mode"`
	IncludedGuests      int    `json:"included_guests"`
	ExtraGuestRateCents int64  `json:"extra_guest_rate_cents"`
	MaxGuests           int    `json:"max_guests"`
	MinNights           int    `json:"min_nights"`
	Rooms               int    `json:"rooms"`
	CheckInHour         int    `json:"check_in_hour"`
	PolicyID            string `json:"policy_id"`
	DepositPercent      int    `json:"deposit_percent"`
}

// LoadFixtures creates the properties, policies and units listed in a JSON
// file through the owner commands. A missing file is not an error.
func (a *App) LoadFixtures(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.Logger.Info("catalog fixtures file not found, skipping", slog.String("path", path))
			return 0, nil
		}
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}
	created := 0
	for _, fx := range fixtures {
		n, err := a.loadProperty(ctx, fx)
		created += n
		if err != nil {
			a.Logger.Error("fixture invalid", slog.String("property", fx.Name), slog.Any("error", err))
		}
	}
	return created, nil
}

func (a *App) loadProperty(ctx context.Context, fx propertyFixture) (int, error) {
	ctx = middleware.WithPrincipal(ctx, middleware.Principal{ID: fx.OwnerID, Roles: []string{middleware.RoleOwner}})
	owner := unitsapp.Owner{ID: fx.OwnerID}
	bus := a.Buses.Commands

	prop, err := commands.Dispatch[unitsapp.CreatePropertyCommand, *dto.Property](ctx, bus, unitsapp.CreatePropertyCommand{
		Owner: owner, Name: fx.Name, Currency: fx.Currency, TaxRateBps: fx.TaxRateBps,
	})
	if err != nil {
		return 0, err
	}
	for _, p := range fx.Policies {
		if _, err := commands.Dispatch[unitsapp.SetCancellationPolicyCommand, *dto.Policy](ctx, bus, unitsapp.SetCancellationPolicyCommand{
			Owner: owner, PolicyID: p.ID, PropertyID: prop.ID, Tiers: p.Tiers,
		}); err != nil {
			return 0, fmt.Errorf("policy %s: %w", p.ID, err)
		}
	}
	created := 0
	for _, u := range fx.Units {
		unit, err := commands.Dispatch[unitsapp.CreateUnitCommand, *dto.Unit](ctx, bus, unitsapp.CreateUnitCommand{
			Owner:               owner,
			PropertyID:          prop.ID,
			Name:                u.Name,
			BaseRateCents:       u.BaseRateCents,
			PricingMode:         u.PricingMode,
			IncludedGuests:      u.IncludedGuests,
			ExtraGuestRateCents: u.ExtraGuestRateCents,
			MaxGuests:           u.MaxGuests,
			MinNights:           u.MinNights,
			Rooms:               u.Rooms,
			CheckInHour:         u.CheckInHour,
			PolicyID:            u.PolicyID,
			DepositPercent:      u.DepositPercent,
		})
		if err != nil {
			return created, fmt.Errorf("unit %s: %w", u.Name, err)
		}
		created++
		a.Logger.Info("unit fixture imported", slog.String("unit_id", unit.ID), slog.String("property_id", prop.ID))
	}
	return created, nil
}
