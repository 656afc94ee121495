package policies

import (
	"context"

	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/units"
)

// QuoteArchive keeps an audit copy of every frozen quote.
type QuoteArchive interface {
	Put(ctx context.Context, unitID units.UnitID, bookingID booking.BookingID, quote pricing.FrozenQuote) error
}
