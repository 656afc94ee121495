package booking

import (
	"time"

	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/shared/money"
	"roomstay/internal/domain/units"
)

type BookingHeld struct {
	BookingID BookingID
	UnitID    units.UnitID
	GuestID   string
	Stay      daterange.DateRange
	Total     money.Money
	ExpiresAt time.Time
	At        time.Time
}

func (e BookingHeld) EventName() string     { return "booking.held" }
func (e BookingHeld) AggregateID() string   { return string(e.BookingID) }
func (e BookingHeld) OccurredAt() time.Time { return e.At }
func (e BookingHeld) UnitRef() string       { return string(e.UnitID) }

type BookingConfirmed struct {
	BookingID  BookingID
	UnitID     units.UnitID
	Stay       daterange.DateRange
	Total      money.Money
	PaymentRef string
	At         time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }
func (e BookingConfirmed) UnitRef() string       { return string(e.UnitID) }

type BookingCancelled struct {
	BookingID BookingID
	UnitID    units.UnitID
	From      Status
	Reason    string
	At        time.Time
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }
func (e BookingCancelled) UnitRef() string       { return string(e.UnitID) }

type CheckedIn struct {
	BookingID BookingID
	At        time.Time
}

func (e CheckedIn) EventName() string     { return "booking.checked_in" }
func (e CheckedIn) AggregateID() string   { return string(e.BookingID) }
func (e CheckedIn) OccurredAt() time.Time { return e.At }

type CheckedOut struct {
	BookingID BookingID
	At        time.Time
}

func (e CheckedOut) EventName() string     { return "booking.checked_out" }
func (e CheckedOut) AggregateID() string   { return string(e.BookingID) }
func (e CheckedOut) OccurredAt() time.Time { return e.At }

type NoShowRecorded struct {
	BookingID BookingID
	UnitID    units.UnitID
	At        time.Time
}

func (e NoShowRecorded) EventName() string     { return "booking.no_show" }
func (e NoShowRecorded) AggregateID() string   { return string(e.BookingID) }
func (e NoShowRecorded) OccurredAt() time.Time { return e.At }
func (e NoShowRecorded) UnitRef() string       { return string(e.UnitID) }
