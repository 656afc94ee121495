package cancellation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standard(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy("standard", "property:prop-1", []Tier{
		{MinHoursBeforeCheckIn: 48, RefundPercent: 50},
		{MinHoursBeforeCheckIn: 168, RefundPercent: 100},
		{MinHoursBeforeCheckIn: 0, RefundPercent: 0},
	})
	require.NoError(t, err)
	return p
}

func TestTierFor(t *testing.T) {
	p := standard(t)
	tests := []struct {
		hours float64
		want  int
	}{
		{500, 100},
		{168, 100},
		{167.9, 50},
		{100, 50},
		{48, 50},
		{47, 0},
		{0, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.TierFor(tt.hours), "hours=%v", tt.hours)
	}
}

func TestTierFor_NoMatchingTier(t *testing.T) {
	p, err := NewPolicy("strict", "unit:u-1", []Tier{{MinHoursBeforeCheckIn: 72, RefundPercent: 30}})
	require.NoError(t, err)
	assert.Equal(t, 0, p.TierFor(10))

	var nilPolicy *Policy
	assert.Equal(t, 0, nilPolicy.TierFor(1000))
}

func TestTierFor_TieGoesToLargerPercent(t *testing.T) {
	p := &Policy{ID: "tie", Tiers: []Tier{{MinHoursBeforeCheckIn: 24, RefundPercent: 20}, {MinHoursBeforeCheckIn: 24, RefundPercent: 40}}}
	assert.Equal(t, 40, p.TierFor(30))
}

func TestTierFor_Monotonic(t *testing.T) {
	p := standard(t)
	prev := p.TierFor(0)
	for h := 1; h <= 400; h++ {
		cur := p.TierFor(float64(h))
		assert.GreaterOrEqual(t, cur, prev, "refund dropped at %d hours", h)
		prev = cur
	}
}

func TestValidate(t *testing.T) {
	_, err := NewPolicy("bad", "", []Tier{{MinHoursBeforeCheckIn: 10, RefundPercent: 120}})
	assert.ErrorIs(t, err, ErrInvalidTier)

	_, err = NewPolicy("bad", "", []Tier{{MinHoursBeforeCheckIn: -1, RefundPercent: 10}})
	assert.ErrorIs(t, err, ErrInvalidTier)

	_, err = NewPolicy("inverted", "", []Tier{
		{MinHoursBeforeCheckIn: 168, RefundPercent: 20},
		{MinHoursBeforeCheckIn: 24, RefundPercent: 80},
	})
	assert.ErrorIs(t, err, ErrNonMonotonic)
}
