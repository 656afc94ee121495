package units

import (
	"sort"
	"time"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
)

var (
	ErrSeasonalOverlap  = apperr.New(apperr.Invariant, "units: seasonal rate overlaps an existing one")
	ErrSeasonalNotFound = apperr.New(apperr.NotFound, "units: seasonal rate not found")
)

// SeasonalRate overrides the base rate for nights inside Range.
type SeasonalRate struct {
	ID        string
	UnitID    UnitID
	Range     daterange.DateRange
	RateCents int64
}

// SeasonalSchedule holds the non-overlapping seasonal rates of one unit.
type SeasonalSchedule struct {
	UnitID  UnitID
	Rates   []SeasonalRate
	Version int64
}

func NewSeasonalSchedule(unitID UnitID) *SeasonalSchedule {
	return &SeasonalSchedule{UnitID: unitID}
}

// Add inserts a rate, refusing any overlap with an existing one.
func (s *SeasonalSchedule) Add(rate SeasonalRate) error {
	if rate.ID == "" {
		return ErrInvalidUnit
	}
	if err := rate.Range.Validate(); err != nil {
		return err
	}
	if rate.RateCents < 0 {
		return ErrNegativeRate
	}
	for _, existing := range s.Rates {
		if existing.Range.Overlaps(rate.Range) {
			return ErrSeasonalOverlap
		}
	}
	rate.UnitID = s.UnitID
	s.Rates = append(s.Rates, rate)
	sort.Slice(s.Rates, func(i, j int) bool {
		return s.Rates[i].Range.CheckIn.Before(s.Rates[j].Range.CheckIn)
	})
	return nil
}

func (s *SeasonalSchedule) Remove(id string) error {
	for i, r := range s.Rates {
		if r.ID == id {
			s.Rates = append(s.Rates[:i], s.Rates[i+1:]...)
			return nil
		}
	}
	return ErrSeasonalNotFound
}

// RateOn returns the seasonal rate covering night, if any.
func (s *SeasonalSchedule) RateOn(night time.Time) (SeasonalRate, bool) {
	if s == nil {
		return SeasonalRate{}, false
	}
	for _, r := range s.Rates {
		if r.Range.ContainsDate(night) {
			return r, true
		}
	}
	return SeasonalRate{}, false
}
