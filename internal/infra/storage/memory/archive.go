package memory

import (
	"context"
	"sync"

	"roomstay/internal/app/policies"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/units"
)

// QuoteArchive keeps frozen quotes by booking id.
type QuoteArchive struct {
	mu     sync.RWMutex
	quotes map[booking.BookingID]pricing.FrozenQuote
}

func NewQuoteArchive() *QuoteArchive {
	return &QuoteArchive{quotes: make(map[booking.BookingID]pricing.FrozenQuote)}
}

func (a *QuoteArchive) Put(ctx context.Context, unitID units.UnitID, bookingID booking.BookingID, quote pricing.FrozenQuote) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.quotes[bookingID] = quote
	return nil
}

func (a *QuoteArchive) Get(bookingID booking.BookingID) (pricing.FrozenQuote, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	q, ok := a.quotes[bookingID]
	return q, ok
}

var _ policies.QuoteArchive = (*QuoteArchive)(nil)
