package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roomstay/internal/domain/booking"
)

const sweepBatch = 100

// ExpireHolds cancels pending bookings whose hold window has passed and frees
// their dates. It returns how many holds were expired.
func (m *Manager) ExpireHolds(ctx context.Context) (int, error) {
	if err := m.ensure(); err != nil {
		return 0, err
	}
	holds, err := m.Bookings.ExpiredHolds(ctx, m.now(), sweepBatch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, h := range holds {
		ok, err := m.expire(ctx, h)
		if err != nil {
			m.logger().WarnContext(ctx, "hold expiry failed",
				slog.String("booking_id", string(h.ID)), slog.Any("error", err))
			continue
		}
		if ok {
			expired++
		}
	}
	if m.Outbox != nil && expired > 0 {
		if err := m.Outbox.Flush(ctx); err != nil {
			return expired, err
		}
	}
	return expired, nil
}

// expire re-reads the hold under the unit lock; a payment may have confirmed it
// since the sweep listed it.
func (m *Manager) expire(ctx context.Context, hold *booking.Booking) (bool, error) {
	expired := false
	err := m.withUnit(ctx, hold.UnitID, func() error {
		b, err := m.Bookings.ByID(ctx, hold.ID)
		if err != nil {
			return err
		}
		now := m.now()
		if !b.HoldExpired(now) {
			return nil
		}
		expired = true
		return m.cancel(ctx, b, func() error { return b.Abort(booking.ReasonHoldExpired, now) })
	})
	return expired, err
}

// RunSweeper expires holds every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := m.ExpireHolds(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger().ErrorContext(ctx, "hold sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				m.logger().InfoContext(ctx, "expired holds", slog.Int("count", n))
			}
		}
	}
}
