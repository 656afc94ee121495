package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"roomstay/internal/app/middleware"
	"roomstay/internal/app/uow"
	"roomstay/internal/domain/availability"
	domainbooking "roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

func setupTestDB(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo integration test skipped in -short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := New(ctx, uri, "roomstay_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	require.NoError(t, client.EnsureIndexes(ctx))
	return client
}

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func newHold(t *testing.T, id, key string) *domainbooking.Booking {
	t.Helper()
	unit := &units.Unit{ID: "unit-1", PropertyID: "prop-1", CheckInHour: 15}
	price := pricing.FrozenQuote{Breakdown: pricing.Breakdown{UnitID: "unit-1", Currency: "USD", CheckIn: "2025-07-10", CheckOut: "2025-07-13", TotalCents: 34500,
		Lines: []pricing.Line{{Kind: pricing.LineNight, Code: "2025-07-10", Quantity: 1, UnitCents: 10000, AmountCents: 10000}}}, Digest: "abc"}
	b, err := domainbooking.NewHold(domainbooking.HoldParams{
		ID: domainbooking.BookingID(id), Unit: unit, GuestID: "guest-1", Stay: daterange.MustParse("2025-07-10", "2025-07-13"),
		Guests: domainbooking.Guests{Adults: 2}, Price: price, IdempotencyKey: key, HoldWindow: 15 * time.Minute, Now: now,
		Policy: cancellation.Policy{ID: "moderate", Tiers: []cancellation.Tier{{MinHoursBeforeCheckIn: 72, RefundPercent: 50}}},
	})
	require.NoError(t, err)
	return b
}

func TestMongoRepositories(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()

	t.Run("booking round trip and versioning", func(t *testing.T) {
		repo := NewBookingRepository(client.DB)
		b := newHold(t, "b-1", "key-1")
		require.NoError(t, repo.Save(ctx, b))
		assert.Equal(t, int64(1), b.Version)

		loaded, err := repo.ByID(ctx, "b-1")
		require.NoError(t, err)
		assert.Equal(t, b.Stay, loaded.Stay)
		assert.Equal(t, b.Price, loaded.Price)
		assert.Equal(t, "moderate", loaded.Policy.ID)
		assert.Equal(t, b.HoldExpiresAt, loaded.HoldExpiresAt)

		byKey, err := repo.ByIdempotencyKey(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, b.ID, byKey.ID)

		stale := *loaded
		require.NoError(t, loaded.Confirm("pay-1", 34500, now))
		require.NoError(t, repo.Save(ctx, loaded))
		assert.ErrorIs(t, repo.Save(ctx, &stale), apperr.ErrConcurrentUpdate)

		dup := newHold(t, "b-2", "key-1")
		assert.ErrorIs(t, repo.Save(ctx, dup), apperr.ErrConcurrentUpdate)

		_, err = repo.ByID(ctx, "missing")
		assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
	})

	t.Run("expired holds and listings", func(t *testing.T) {
		repo := NewBookingRepository(client.DB)
		held := newHold(t, "b-3", "")
		require.NoError(t, repo.Save(ctx, held))

		expired, err := repo.ExpiredHolds(ctx, now.Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, domainbooking.BookingID("b-3"), expired[0].ID)

		byGuest, err := repo.ListByGuest(ctx, "guest-1")
		require.NoError(t, err)
		assert.Len(t, byGuest, 2)
		byUnit, err := repo.ListByUnit(ctx, "unit-1")
		require.NoError(t, err)
		assert.Len(t, byUnit, 2)
	})

	t.Run("calendar compare and swap", func(t *testing.T) {
		repo := NewCalendarRepository(client.DB)
		index := availability.NewCalendarIndex(repo)
		stay := daterange.MustParse("2025-08-01", "2025-08-04")
		require.NoError(t, index.Reserve(ctx, "unit-9", stay, availability.ReasonBooking, "b-9"))
		err := index.Reserve(ctx, "unit-9", daterange.MustParse("2025-08-03", "2025-08-05"), availability.ReasonBooking, "b-10")
		assert.ErrorIs(t, err, availability.ErrOverlappingRange)

		first, err := repo.Calendar(ctx, "unit-9")
		require.NoError(t, err)
		second, err := repo.Calendar(ctx, "unit-9")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, first))
		assert.ErrorIs(t, repo.Save(ctx, second), availability.ErrStaleCalendar)

		blocks, err := index.Blocks(ctx, "unit-9")
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.True(t, blocks[0].Range.Equal(stay))
	})

	t.Run("catalog", func(t *testing.T) {
		catalog := NewCatalog(client.DB)
		prop, err := units.NewProperty(units.CreatePropertyParams{ID: "prop-1", OwnerID: "owner-1", Currency: "usd", TaxRateBps: 1500, Now: now})
		require.NoError(t, err)
		require.NoError(t, catalog.SaveProperty(ctx, prop))
		unit, err := units.NewUnit(units.CreateUnitParams{ID: "unit-1", Property: prop, BaseRateCents: 10000, Now: now})
		require.NoError(t, err)
		require.NoError(t, catalog.SaveUnit(ctx, unit))

		gotProp, err := catalog.Property(ctx, "prop-1")
		require.NoError(t, err)
		assert.Equal(t, "USD", gotProp.Currency)
		gotUnit, err := catalog.Unit(ctx, "unit-1")
		require.NoError(t, err)
		assert.Equal(t, units.PerUnit, gotUnit.Mode)

		schedule, err := catalog.Schedule(ctx, "unit-1")
		require.NoError(t, err)
		require.NoError(t, schedule.Add(units.SeasonalRate{ID: "sr-1", Range: daterange.MustParse("2025-12-20", "2026-01-03"), RateCents: 15000}))
		require.NoError(t, catalog.SaveSchedule(ctx, schedule))
		reloaded, err := catalog.Schedule(ctx, "unit-1")
		require.NoError(t, err)
		rate, ok := reloaded.RateOn(daterange.Day(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)))
		require.True(t, ok)
		assert.Equal(t, int64(15000), rate.RateCents)

		_, err = catalog.Promotion(ctx, "nope")
		assert.ErrorIs(t, err, units.ErrPromotionNotFound)
	})

	t.Run("refund requests", func(t *testing.T) {
		repo := NewRefundRepository(client.DB)
		r := &refund.Request{ID: "rf-1", BookingID: "b-1", Status: refund.StatusRequested, RequestedCents: 100, CreatedAt: now}
		require.NoError(t, repo.Save(ctx, r))
		list, err := repo.ByBooking(ctx, "b-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(100), list[0].RequestedCents)

		second := &refund.Request{ID: "rf-2", BookingID: "b-1", Status: refund.StatusRequested, RequestedCents: 50, CreatedAt: now}
		assert.ErrorIs(t, repo.Save(ctx, second), refund.ErrOpenRequestExists)

		require.NoError(t, r.Withdraw(now))
		require.NoError(t, repo.Save(ctx, r))
		require.NoError(t, repo.Save(ctx, second))
	})

	t.Run("idempotency store", func(t *testing.T) {
		store, err := NewIdempotencyStore(ctx, client.DB, time.Hour)
		require.NoError(t, err)
		_, found, err := store.Get(ctx, "booking.hold:k")
		require.NoError(t, err)
		assert.False(t, found)
		require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "booking.hold:k", Command: "booking.hold", Payload: []byte(`{"id":"b-1"}`), OccurredAt: now}))
		rec, found, err := store.Get(ctx, "booking.hold:k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.JSONEq(t, `{"id":"b-1"}`, string(rec.Payload))
	})
}

func TestUnitOfWork(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	factory := NewFactory(client.DB)

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	txCtx := uow.Bind(ctx, unit)
	policy, err := cancellation.NewPolicy("strict", "property", []cancellation.Tier{{MinHoursBeforeCheckIn: 0, RefundPercent: 0}})
	require.NoError(t, err)
	require.NoError(t, unit.Policies().Save(txCtx, policy))
	require.NoError(t, unit.Rollback(ctx))

	_, err = factory.PolicyRepo.Policy(ctx, "strict")
	assert.ErrorIs(t, err, cancellation.ErrPolicyNotFound)

	unit, err = factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	txCtx = uow.Bind(ctx, unit)
	require.NoError(t, unit.Policies().Save(txCtx, policy))
	require.NoError(t, unit.Commit(ctx))

	got, err := factory.PolicyRepo.Policy(ctx, "strict")
	require.NoError(t, err)
	assert.Equal(t, "property", got.Scope)
}
