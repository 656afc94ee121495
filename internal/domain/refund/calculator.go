package refund

import (
	"time"

	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/shared/money"
)

// Outcome is the policy-driven refund for a cancellation at a given instant.
// OutstandingCents is informational: what the guest owes or has forfeited
// against the booking total.
type Outcome struct {
	HoursUntilCheckIn float64 `json:"hours_until_checkin"`
	Percent           int     `json:"percent"`
	PaidCents         int64   `json:"paid_cents"`
	CalculatedCents   int64   `json:"calculated_cents"`
	OutstandingCents  int64   `json:"outstanding_cents"`
	Currency          string  `json:"currency"`
}

// Calculator applies a booking's frozen cancellation policy. Stateless.
type Calculator struct{}

func (Calculator) Calculate(b *booking.Booking, paidCents int64, now time.Time) Outcome {
	hours := b.HoursUntilCheckIn(now)
	percent := b.Policy.TierFor(hours)
	calculated := money.RoundRatio(paidCents, int64(percent), 100)
	if calculated > paidCents {
		calculated = paidCents
	}
	if calculated < 0 {
		calculated = 0
	}
	return Outcome{
		HoursUntilCheckIn: hours,
		Percent:           percent,
		PaidCents:         paidCents,
		CalculatedCents:   calculated,
		OutstandingCents:  b.Price.TotalCents - calculated,
		Currency:          b.Price.Currency,
	}
}
