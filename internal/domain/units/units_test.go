package units

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/shared/money"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestProperty(t *testing.T) *Property {
	t.Helper()
	p, err := NewProperty(CreatePropertyParams{ID: "prop-1", OwnerID: "owner-1", Currency: "usd", TaxRateBps: 1500, Now: now})
	require.NoError(t, err)
	return p
}

func TestNewProperty_Validation(t *testing.T) {
	p := newTestProperty(t)
	assert.Equal(t, "USD", p.Currency)
	assert.True(t, p.OwnedBy("owner-1"))

	_, err := NewProperty(CreatePropertyParams{ID: "p", OwnerID: "o", Currency: "USD", TaxRateBps: 10001})
	assert.ErrorIs(t, err, ErrTaxRateBounds)

	_, err = NewProperty(CreatePropertyParams{ID: "p", Currency: "USD"})
	assert.ErrorIs(t, err, ErrInvalidProperty)
}

func TestNewUnit_DefaultsAndLimits(t *testing.T) {
	u, err := NewUnit(CreateUnitParams{ID: "unit-1", Property: newTestProperty(t), BaseRateCents: 10000, MaxGuests: 4, MaxNights: 14, CheckInHour: 15, Now: now})
	require.NoError(t, err)

	assert.Equal(t, PerUnit, u.Mode)
	assert.Equal(t, "USD", u.Currency)
	assert.Equal(t, 1, u.Rooms)
	assert.Len(t, u.PendingEvents(), 1)

	assert.NoError(t, u.CheckGuests(4))
	assert.ErrorIs(t, u.CheckGuests(5), ErrGuestsOutOfRange)
	assert.ErrorIs(t, u.CheckGuests(0), ErrGuestsOutOfRange)
	assert.ErrorIs(t, u.CheckNights(15), ErrNightsOutOfRange)
	assert.ErrorIs(t, u.CheckRooms(2), ErrRoomsOutOfRange)

	checkIn := u.CheckInAt(time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 7, 10, 15, 0, 0, 0, time.UTC), checkIn)
}

func TestUnit_Reprice(t *testing.T) {
	u, err := NewUnit(CreateUnitParams{ID: "unit-1", Property: newTestProperty(t), BaseRateCents: 10000, Now: now})
	require.NoError(t, err)
	u.ClearEvents()

	require.NoError(t, u.Reprice(12000, PerPerson, 0, 0, now.Add(time.Hour)))
	assert.Equal(t, int64(12000), u.BaseRateCents)
	require.Len(t, u.PendingEvents(), 1)
	ev := u.PendingEvents()[0].(UnitRepriced)
	assert.Equal(t, int64(10000), ev.Previous.Amount)

	err = u.Reprice(-1, PerUnit, 0, 0, now)
	assert.ErrorIs(t, err, ErrNegativeRate)
	assert.Equal(t, int64(12000), u.BaseRateCents)

	err = u.Reprice(100, PricingMode("hourly"), 0, 0, now)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestSeasonalSchedule_RejectsOverlap(t *testing.T) {
	s := NewSeasonalSchedule("unit-1")
	require.NoError(t, s.Add(SeasonalRate{ID: "summer", Range: daterange.MustParse("2025-07-01", "2025-09-01"), RateCents: 15000}))
	require.NoError(t, s.Add(SeasonalRate{ID: "sept", Range: daterange.MustParse("2025-09-01", "2025-10-01"), RateCents: 12000}))

	err := s.Add(SeasonalRate{ID: "late-summer", Range: daterange.MustParse("2025-08-20", "2025-09-05"), RateCents: 9000})
	assert.ErrorIs(t, err, ErrSeasonalOverlap)
	assert.True(t, apperr.IsKind(err, apperr.Invariant))
	assert.Len(t, s.Rates, 2)

	rate, ok := s.RateOn(time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "summer", rate.ID)

	rate, ok = s.RateOn(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "sept", rate.ID)

	_, ok = s.RateOn(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)

	require.NoError(t, s.Remove("sept"))
	assert.ErrorIs(t, s.Remove("sept"), ErrSeasonalNotFound)
}

func TestPromotion_Applicability(t *testing.T) {
	promo := &Promotion{
		ID:         "early-bird",
		UnitIDs:    []UnitID{"unit-1"},
		Kind:       DiscountPercent,
		PercentBps: 1000,
		Valid:      daterange.MustParse("2025-07-01", "2025-08-01"),
		MinNights:  3,
		Active:     true,
	}
	require.NoError(t, promo.Validate())

	assert.NoError(t, promo.CheckApplicable("unit-1", daterange.MustParse("2025-07-31", "2025-08-03")))
	assert.ErrorIs(t, promo.CheckApplicable("unit-1", daterange.MustParse("2025-08-01", "2025-08-04")), ErrPromotionNotApplicable)
	assert.ErrorIs(t, promo.CheckApplicable("unit-1", daterange.MustParse("2025-07-10", "2025-07-12")), ErrPromotionNotApplicable)
	assert.ErrorIs(t, promo.CheckApplicable("unit-2", daterange.MustParse("2025-07-10", "2025-07-20")), ErrPromotionNotApplicable)

	assert.Equal(t, int64(3000), promo.Discount(money.Must(30000, "USD")).Amount)

	fixed := &Promotion{Kind: DiscountFixed, AmountCents: 50000}
	assert.Equal(t, int64(30000), fixed.Discount(money.Must(30000, "USD")).Amount)
}

func TestAddOn_Quantity(t *testing.T) {
	u := &Unit{ID: "unit-1", PropertyID: "prop-1"}
	tests := []struct {
		pricing AddOnPricing
		want    int64
	}{
		{PerBooking, 1},
		{PerNight, 3},
		{PerGuest, 2},
		{PerRoom, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.pricing), func(t *testing.T) {
			a := &AddOn{ID: "a", PropertyID: "prop-1", Pricing: tt.pricing, PriceCents: 500, Active: true}
			require.NoError(t, a.Validate())
			assert.True(t, a.OfferedFor(u))
			assert.Equal(t, tt.want, a.Quantity(3, 2, 1))
		})
	}

	scoped := &AddOn{ID: "b", PropertyID: "prop-1", UnitID: "unit-9", Pricing: PerBooking, Active: true}
	assert.False(t, scoped.OfferedFor(u))
}
