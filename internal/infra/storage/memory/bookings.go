package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/events"
	"roomstay/internal/domain/units"
)

// BookingRepository stores booking snapshots with optimistic versioning.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[booking.BookingID]booking.Booking
	keys  map[string]booking.BookingID
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		items: make(map[booking.BookingID]booking.Booking),
		keys:  make(map[string]booking.BookingID),
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return detach(b), nil
}

func (r *BookingRepository) ByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.keys[key]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return detach(r.items[id]), nil
}

// Save fails with apperr.ErrConcurrentUpdate when b was loaded before the
// latest write.
func (r *BookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[b.ID]
	if ok && current.Version != b.Version {
		return apperr.ErrConcurrentUpdate
	}
	if !ok && b.IdempotencyKey != "" {
		if _, taken := r.keys[b.IdempotencyKey]; taken {
			return apperr.ErrConcurrentUpdate
		}
	}
	b.Version++
	stored := *b
	stored.EventRecorder = events.EventRecorder{}
	stored.RefundIDs = slices.Clone(b.RefundIDs)
	r.items[b.ID] = stored
	if b.IdempotencyKey != "" {
		r.keys[b.IdempotencyKey] = b.ID
	}
	return nil
}

func (r *BookingRepository) ListByUnit(ctx context.Context, unitID units.UnitID) ([]*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*booking.Booking
	for _, b := range r.items {
		if b.UnitID == unitID {
			out = append(out, detach(b))
		}
	}
	sortByCheckIn(out)
	return out, nil
}

// ListByGuest returns a guest's bookings ordered by check-in.
func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*booking.Booking
	for _, b := range r.items {
		if b.GuestID == guestID {
			out = append(out, detach(b))
		}
	}
	sortByCheckIn(out)
	return out, nil
}

func (r *BookingRepository) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*booking.Booking
	for _, b := range r.items {
		if b.HoldExpired(now) {
			out = append(out, detach(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HoldExpiresAt.Before(out[j].HoldExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func detach(b booking.Booking) *booking.Booking {
	b.RefundIDs = slices.Clone(b.RefundIDs)
	return &b
}

func sortByCheckIn(list []*booking.Booking) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Stay.CheckIn.Equal(list[j].Stay.CheckIn) {
			return list[i].ID < list[j].ID
		}
		return list[i].Stay.CheckIn.Before(list[j].Stay.CheckIn)
	})
}

var _ booking.Repository = (*BookingRepository)(nil)
