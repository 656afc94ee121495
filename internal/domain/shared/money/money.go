package money

import (
	"errors"
	"strings"

	"roomstay/internal/domain/shared/apperr"
)

var (
	ErrInvalidCurrency  = apperr.New(apperr.Validation, "money: invalid currency code")
	ErrCurrencyMismatch = apperr.New(apperr.Validation, "money: currency mismatch")
	ErrZeroDenominator  = errors.New("money: zero denominator")
)

// Money keeps amounts in integer minor units (cents) of a single currency.
type Money struct {
	Amount   int64  `json:"amount" bson:"amount"`
	Currency string `json:"currency" bson:"currency"`
}

func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// Percent returns percent/100 of the amount, rounded half up.
func (m Money) Percent(percent int64) Money {
	return Money{Amount: RoundRatio(m.Amount, percent, 100), Currency: m.Currency}
}

// BasisPoints returns bps/10000 of the amount, rounded half up.
func (m Money) BasisPoints(bps int64) Money {
	return Money{Amount: RoundRatio(m.Amount, bps, 10000), Currency: m.Currency}
}

// Min returns the smaller of two same-currency amounts.
func (m Money) Min(other Money) Money {
	if other.Amount < m.Amount {
		return Money{Amount: other.Amount, Currency: m.Currency}
	}
	return m
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsNegative() bool {
	return m.Amount < 0
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// RoundRatio computes amount*num/den rounding half away from zero.
// Panics on a zero denominator.
func RoundRatio(amount, num, den int64) int64 {
	if den == 0 {
		panic(ErrZeroDenominator)
	}
	product := amount * num
	if den < 0 {
		product, den = -product, -den
	}
	if product >= 0 {
		return (product + den/2) / den
	}
	return -((-product + den/2) / den)
}
