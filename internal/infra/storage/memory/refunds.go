package memory

import (
	"context"
	"sort"
	"sync"

	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/events"
)

type RefundRepository struct {
	mu    sync.RWMutex
	items map[string]refund.Request
}

func NewRefundRepository() *RefundRepository {
	return &RefundRepository{items: make(map[string]refund.Request)}
}

func (r *RefundRepository) ByID(ctx context.Context, id string) (*refund.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.items[id]
	if !ok {
		return nil, refund.ErrRequestNotFound
	}
	return &req, nil
}

func (r *RefundRepository) ByBooking(ctx context.Context, bookingID booking.BookingID) ([]*refund.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*refund.Request
	for _, req := range r.items {
		if req.BookingID == bookingID {
			out = append(out, &req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RefundRepository) Save(ctx context.Context, req *refund.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.items[req.ID]; ok && current.Version != req.Version {
		return apperr.ErrConcurrentUpdate
	}
	if req.Open() {
		for id, other := range r.items {
			if id != req.ID && other.BookingID == req.BookingID && other.Open() {
				return refund.ErrOpenRequestExists
			}
		}
	}
	req.Version++
	stored := *req
	stored.EventRecorder = events.EventRecorder{}
	r.items[req.ID] = stored
	return nil
}

var _ refund.Repository = (*RefundRepository)(nil)
