package dto

import (
	"time"

	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

type GuestsDTO struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

type Booking struct {
	ID            string              `json:"id"`
	UnitID        string              `json:"unit_id"`
	PropertyID    string              `json:"property_id"`
	GuestID       string              `json:"guest_id"`
	CheckIn       string              `json:"check_in"`
	CheckOut      string              `json:"check_out"`
	Guests        GuestsDTO           `json:"guests"`
	Rooms         int                 `json:"rooms"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	Total         MoneyDTO            `json:"total"`
	AmountDue     int64               `json:"amount_due_cents"`
	AmountPaid    int64               `json:"amount_paid_cents"`
	Refunded      int64               `json:"refunded_cents"`
	Price         pricing.FrozenQuote `json:"price"`
	PolicyID      string              `json:"policy_id"`
	CheckInAt     time.Time           `json:"check_in_at"`
	HoldExpiresAt *time.Time          `json:"hold_expires_at,omitempty"`
	PaymentRef    string              `json:"payment_ref,omitempty"`
	CancelReason  string              `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func MapBooking(b *booking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	out := Booking{
		ID:            string(b.ID),
		UnitID:        string(b.UnitID),
		PropertyID:    string(b.PropertyID),
		GuestID:       b.GuestID,
		CheckIn:       b.Stay.CheckIn.Format(daterange.DateLayout),
		CheckOut:      b.Stay.CheckOut.Format(daterange.DateLayout),
		Guests:        GuestsDTO{Adults: b.Guests.Adults, Children: b.Guests.Children},
		Rooms:         b.Rooms,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Total:         MapMoney(b.Total()),
		AmountDue:     b.DueCents,
		AmountPaid:    b.AmountPaid,
		Refunded:      b.Refunded,
		Price:         b.Price,
		PolicyID:      b.Policy.ID,
		CheckInAt:     b.CheckInAt,
		PaymentRef:    b.PaymentRef,
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if b.Status == booking.StatusPending {
		expires := b.HoldExpiresAt
		out.HoldExpiresAt = &expires
	}
	return out
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}
