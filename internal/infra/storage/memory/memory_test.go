package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/app/middleware"
	appoutbox "roomstay/internal/app/outbox"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/shared/apperr"
)

func TestIdempotencyStoreExpiry(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	store := NewIdempotencyStore(time.Hour)
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "hold:k1", OccurredAt: now}))
	rec, ok, err := store.Get(ctx, "hold:k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hold:k1", rec.Key)

	now = now.Add(2 * time.Hour)
	_, ok, err = store.Get(ctx, "hold:k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "hold:k2", OccurredAt: now}))
	assert.Equal(t, 1, store.Len())
}

func TestUnitLockerSerializesPerUnit(t *testing.T) {
	locker := NewUnitLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "unit-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.locks)
}

func TestUnitLockerHonoursContext(t *testing.T) {
	locker := NewUnitLocker()
	unlock, err := locker.Lock(context.Background(), "unit-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "unit-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locker.Lock(context.Background(), "unit-2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.Empty(t, locker.locks)
}

type countingNotifier struct {
	mu    sync.Mutex
	names []string
}

func (n *countingNotifier) Notify(_ context.Context, rec appoutbox.EventRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.names = append(n.names, rec.Name)
	return nil
}

func TestOutboxDeliversOnFlush(t *testing.T) {
	notifier := &countingNotifier{}
	box := NewOutbox(notifier, nil)
	ctx := context.Background()

	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "1", Name: "booking.held"}))
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "2", Name: "availability.blocked"}))
	assert.Empty(t, box.Flushed())

	require.NoError(t, box.Flush(ctx))
	box.Wait()
	assert.Equal(t, []string{"booking.held", "availability.blocked"}, box.Flushed())
	assert.Equal(t, []string{"booking.held", "availability.blocked"}, notifier.names)

	require.NoError(t, box.Flush(ctx))
	box.Wait()
	assert.Len(t, notifier.names, 2)
}

func TestBookingRepositoryVersioning(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()

	b := &booking.Booking{ID: "b-1", UnitID: "unit-1", GuestID: "g-1", IdempotencyKey: "k-1"}
	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, int64(1), b.Version)

	stale, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)
	fresh, err := repo.ByIdempotencyKey(ctx, "k-1")
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, fresh))
	assert.ErrorIs(t, repo.Save(ctx, stale), apperr.ErrConcurrentUpdate)

	dup := &booking.Booking{ID: "b-2", UnitID: "unit-1", IdempotencyKey: "k-1"}
	assert.ErrorIs(t, repo.Save(ctx, dup), apperr.ErrConflict)

	_, err = repo.ByID(ctx, "missing")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}
