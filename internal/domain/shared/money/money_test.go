package money

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/domain/shared/apperr"
)

func TestRoundRatio(t *testing.T) {
	tests := []struct {
		name         string
		amount, n, d int64
		want         int64
	}{
		{"exact", 30000, 1500, 10000, 4500},
		{"half rounds up", 34950, 50, 100, 17475},
		{"odd half", 5, 50, 100, 3},
		{"below half", 4, 10, 100, 0},
		{"negative half", -5, 50, 100, -3},
		{"zero", 0, 15, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundRatio(tt.amount, tt.n, tt.d))
		})
	}
}

func TestRoundRatio_ZeroDenominatorPanics(t *testing.T) {
	assert.Panics(t, func() { RoundRatio(1, 1, 0) })
}

func TestMoney_Arithmetic(t *testing.T) {
	a := Must(10000, "usd")
	assert.Equal(t, "USD", a.Currency)

	sum, err := a.Add(Must(500, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(10500), sum.Amount)

	_, err = a.Add(Must(1, "EUR"))
	assert.True(t, errors.Is(err, ErrCurrencyMismatch))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	assert.Equal(t, int64(4500), Must(30000, "USD").BasisPoints(1500).Amount)
	assert.Equal(t, int64(17475), Must(34950, "USD").Percent(50).Amount)
	assert.Equal(t, int64(100), Must(300, "USD").Min(Must(100, "USD")).Amount)
}

func TestNew_RejectsBadCurrency(t *testing.T) {
	_, err := New(1, "US")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}
