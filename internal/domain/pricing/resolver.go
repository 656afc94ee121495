package pricing

import (
	"time"

	"roomstay/internal/domain/units"
)

const SourceBase = "base"

// NightRate is the rate that applies to one night before the pricing mode adjustment.
type NightRate struct {
	Night     time.Time
	RateCents int64
	Source    string
	Mode      units.PricingMode
}

// Resolver picks the covering seasonal rate for a night, falling back to the unit's base rate.
type Resolver struct{}

func (Resolver) RateFor(unit *units.Unit, schedule *units.SeasonalSchedule, night time.Time) NightRate {
	if seasonal, ok := schedule.RateOn(night); ok {
		return NightRate{Night: night, RateCents: seasonal.RateCents, Source: "seasonal:" + seasonal.ID, Mode: unit.Mode}
	}
	return NightRate{Night: night, RateCents: unit.BaseRateCents, Source: SourceBase, Mode: unit.Mode}
}
