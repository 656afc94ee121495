package dto

import (
	"time"

	"roomstay/internal/domain/refund"
)

type RefundPreview struct {
	BookingID         string  `json:"booking_id"`
	HoursUntilCheckIn float64 `json:"hours_until_checkin"`
	Percent           int     `json:"percent"`
	PaidCents         int64   `json:"paid_cents"`
	CalculatedCents   int64   `json:"calculated_cents"`
	OutstandingCents  int64   `json:"outstanding_cents"`
	Currency          string  `json:"currency"`
}

func MapRefundPreview(bookingID string, out refund.Outcome) RefundPreview {
	return RefundPreview{
		BookingID:         bookingID,
		HoursUntilCheckIn: out.HoursUntilCheckIn,
		Percent:           out.Percent,
		PaidCents:         out.PaidCents,
		CalculatedCents:   out.CalculatedCents,
		OutstandingCents:  out.OutstandingCents,
		Currency:          out.Currency,
	}
}

type Refund struct {
	ID              string     `json:"id"`
	BookingID       string     `json:"booking_id"`
	GuestID         string     `json:"guest_id"`
	Currency        string     `json:"currency"`
	PaidCents       int64      `json:"paid_cents"`
	RequestedCents  int64      `json:"requested_cents"`
	CalculatedCents int64      `json:"calculated_cents"`
	ApprovedCents   int64      `json:"approved_cents"`
	Percent         int        `json:"percent"`
	Override        bool       `json:"override"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	ReviewerID      string     `json:"reviewer_id,omitempty"`
	DecisionNote    string     `json:"decision_note,omitempty"`
	ProviderRef     string     `json:"provider_ref,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

func MapRefund(r *refund.Request) Refund {
	if r == nil {
		return Refund{}
	}
	out := Refund{
		ID:              r.ID,
		BookingID:       string(r.BookingID),
		GuestID:         r.GuestID,
		Currency:        r.Currency,
		PaidCents:       r.PaidCents,
		RequestedCents:  r.RequestedCents,
		CalculatedCents: r.CalculatedCents,
		ApprovedCents:   r.ApprovedCents,
		Percent:         r.Percent,
		Override:        r.Override,
		Status:          string(r.Status),
		Reason:          r.Reason,
		ReviewerID:      r.ReviewerID,
		DecisionNote:    r.DecisionNote,
		ProviderRef:     r.ProviderRef,
		CreatedAt:       r.CreatedAt,
	}
	if !r.DecidedAt.IsZero() {
		decided := r.DecidedAt
		out.DecidedAt = &decided
	}
	if !r.PaidAt.IsZero() {
		paid := r.PaidAt
		out.PaidAt = &paid
	}
	return out
}

type RefundCollection struct {
	Items []Refund `json:"items"`
}
