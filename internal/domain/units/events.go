package units

import (
	"time"

	"roomstay/internal/domain/shared/money"
)

type UnitCreated struct {
	UnitID     UnitID
	PropertyID PropertyID
	Mode       PricingMode
	BaseRate   money.Money
	At         time.Time
}

func (e UnitCreated) EventName() string     { return "unit.created" }
func (e UnitCreated) AggregateID() string   { return string(e.UnitID) }
func (e UnitCreated) OccurredAt() time.Time { return e.At }

type UnitRepriced struct {
	UnitID   UnitID
	Previous money.Money
	Current  money.Money
	Mode     PricingMode
	At       time.Time
}

func (e UnitRepriced) EventName() string     { return "unit.repriced" }
func (e UnitRepriced) AggregateID() string   { return string(e.UnitID) }
func (e UnitRepriced) OccurredAt() time.Time { return e.At }
