package dto

import (
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/units"
)

type Property struct {
	ID              string `json:"id"`
	OwnerID         string `json:"owner_id"`
	Name            string `json:"name"`
	Currency        string `json:"currency"`
	TaxRateBps      int64  `json:"tax_rate_bps"`
	DefaultPolicyID string `json:"default_policy_id,omitempty"`
}

func MapProperty(p *units.Property) Property {
	return Property{
		ID:              string(p.ID),
		OwnerID:         p.OwnerID,
		Name:            p.Name,
		Currency:        p.Currency,
		TaxRateBps:      p.TaxRateBps,
		DefaultPolicyID: p.DefaultPolicyID,
	}
}

type Unit struct {
	ID                  string   `json:"id"`
	PropertyID          string   `json:"property_id"`
	Name                string   `json:"name"`
	BaseRate            MoneyDTO `json:"base_rate"`
	PricingMode         string   `json:"pricing_mode"`
	IncludedGuests      int      `json:"included_guests"`
	ExtraGuestRateCents int64    `json:"extra_guest_rate_cents"`
	MinGuests           int      `json:"min_guests"`
	MaxGuests           int      `json:"max_guests"`
	MinNights           int      `json:"min_nights"`
	MaxNights           int      `json:"max_nights"`
	Rooms               int      `json:"rooms"`
	CheckInHour         int      `json:"check_in_hour"`
	DepositPercent      int      `json:"deposit_percent"`
	PolicyID            string   `json:"policy_id,omitempty"`
}

func MapUnit(u *units.Unit) Unit {
	return Unit{
		ID:                  string(u.ID),
		PropertyID:          string(u.PropertyID),
		Name:                u.Name,
		BaseRate:            MapMoney(u.BaseRate()),
		PricingMode:         string(u.Mode),
		IncludedGuests:      u.IncludedGuests,
		ExtraGuestRateCents: u.ExtraGuestRateCents,
		MinGuests:           u.MinGuests,
		MaxGuests:           u.MaxGuests,
		MinNights:           u.MinNights,
		MaxNights:           u.MaxNights,
		Rooms:               u.Rooms,
		CheckInHour:         u.CheckInHour,
		DepositPercent:      u.DepositPercent,
		PolicyID:            u.PolicyID,
	}
}

type Policy struct {
	ID    string              `json:"id"`
	Scope string              `json:"scope"`
	Tiers []cancellation.Tier `json:"tiers"`
}

func MapPolicy(p *cancellation.Policy) Policy {
	return Policy{ID: p.ID, Scope: p.Scope, Tiers: append([]cancellation.Tier(nil), p.Tiers...)}
}

// Created acknowledges an owner write.
type Created struct {
	ID string `json:"id"`
}
