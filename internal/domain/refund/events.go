package refund

import (
	"time"

	"roomstay/internal/domain/booking"
)

type Requested struct {
	RequestID       string
	BookingID       booking.BookingID
	RequestedCents  int64
	CalculatedCents int64
	At              time.Time
}

func (e Requested) EventName() string     { return "refund.requested" }
func (e Requested) AggregateID() string   { return e.RequestID }
func (e Requested) OccurredAt() time.Time { return e.At }

type Approved struct {
	RequestID       string
	BookingID       booking.BookingID
	ApprovedCents   int64
	CalculatedCents int64
	Exception       bool
	ReviewerID      string
	At              time.Time
}

func (e Approved) EventName() string     { return "refund.approved" }
func (e Approved) AggregateID() string   { return e.RequestID }
func (e Approved) OccurredAt() time.Time { return e.At }

type Rejected struct {
	RequestID  string
	BookingID  booking.BookingID
	ReviewerID string
	At         time.Time
}

func (e Rejected) EventName() string     { return "refund.rejected" }
func (e Rejected) AggregateID() string   { return e.RequestID }
func (e Rejected) OccurredAt() time.Time { return e.At }

type Withdrawn struct {
	RequestID string
	BookingID booking.BookingID
	At        time.Time
}

func (e Withdrawn) EventName() string     { return "refund.withdrawn" }
func (e Withdrawn) AggregateID() string   { return e.RequestID }
func (e Withdrawn) OccurredAt() time.Time { return e.At }

type Completed struct {
	RequestID   string
	BookingID   booking.BookingID
	AmountCents int64
	Currency    string
	ProviderRef string
	At          time.Time
}

func (e Completed) EventName() string     { return "refund.completed" }
func (e Completed) AggregateID() string   { return e.RequestID }
func (e Completed) OccurredAt() time.Time { return e.At }
