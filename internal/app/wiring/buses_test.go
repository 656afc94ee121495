package wiring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	availabilityapp "roomstay/internal/app/handlers/availability"
	bookingapp "roomstay/internal/app/handlers/booking"
	refundsapp "roomstay/internal/app/handlers/refunds"
	unitsapp "roomstay/internal/app/handlers/units"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/policies"
	"roomstay/internal/app/queries"
	"roomstay/internal/app/services/checkout"
	"roomstay/internal/app/services/lifecycle"
	refundsvc "roomstay/internal/app/services/refunds"
	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/infra/storage/memory"
)

type okGateway struct {
	mu      sync.Mutex
	refunds []policies.RefundRequest
}

func (g *okGateway) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeResult, error) {
	return policies.ChargeResult{Verified: true, ProviderRef: "pay-" + req.BookingID, AmountCents: req.AmountCents}, nil
}

func (g *okGateway) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, req)
	return policies.RefundResult{Completed: true, ProviderRef: "rf-" + req.IdempotencyKey}, nil
}

func newBuses(t *testing.T) (Buses, *memory.Outbox) {
	t.Helper()
	catalog := memory.NewCatalog()
	policyRepo := memory.NewPolicyRepository()
	bookings := memory.NewBookingRepository()
	refundRepo := memory.NewRefundRepository()
	calendars := memory.NewCalendarRepository()
	box := memory.NewOutbox(nil, nil)
	locker := memory.NewUnitLocker()
	gateway := &okGateway{}

	quoter := &pricing.Quoter{Catalog: catalog, Engine: pricing.NewEngine(nil)}
	manager := &lifecycle.Manager{
		Catalog:  catalog,
		Policies: policyRepo,
		Bookings: bookings,
		Index:    availability.NewCalendarIndex(calendars),
		Locker:   locker,
		Quoter:   quoter,
		Outbox:   box,
		Archive:  memory.NewQuoteArchive(),
	}
	return Build(Deps{
		UoW: memory.Factory{
			CatalogRepo:  catalog,
			PolicyRepo:   policyRepo,
			BookingRepo:  bookings,
			RefundRepo:   refundRepo,
			CalendarRepo: calendars,
		},
		Outbox:      box,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Lifecycle:   manager,
		Checkout:    &checkout.Orchestrator{Lifecycle: manager, Bookings: bookings, Quoter: quoter, Gateway: gateway},
		Refunds:     &refundsvc.Service{Bookings: bookings, Refunds: refundRepo, Locker: locker, Gateway: gateway, Outbox: box},
	}), box
}

func as(id string, roles ...string) context.Context {
	return middleware.WithPrincipal(context.Background(), middleware.Principal{ID: id, Roles: roles})
}

func stayFromToday(offsetDays, nights int) (string, string) {
	in := daterange.Day(time.Now().UTC()).AddDate(0, 0, offsetDays)
	return in.Format(daterange.DateLayout), in.AddDate(0, 0, nights).Format(daterange.DateLayout)
}

func seedUnit(t *testing.T, buses Buses) string {
	t.Helper()
	ctx := as("owner-1", middleware.RoleOwner)
	owner := unitsapp.Owner{ID: "owner-1"}

	prop, err := commands.Dispatch[unitsapp.CreatePropertyCommand, *dto.Property](ctx, buses.Commands, unitsapp.CreatePropertyCommand{
		Owner: owner, Name: "Harbour House", Currency: "usd", TaxRateBps: 1500,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", prop.Currency)

	_, err = commands.Dispatch[unitsapp.SetCancellationPolicyCommand, *dto.Policy](ctx, buses.Commands, unitsapp.SetCancellationPolicyCommand{
		Owner: owner, PolicyID: "moderate", PropertyID: prop.ID,
		Tiers: []unitsapp.PolicyTier{{MinHoursBeforeCheckIn: 168, RefundPercent: 100}, {MinHoursBeforeCheckIn: 72, RefundPercent: 50}, {RefundPercent: 0}},
	})
	require.NoError(t, err)

	unit, err := commands.Dispatch[unitsapp.CreateUnitCommand, *dto.Unit](ctx, buses.Commands, unitsapp.CreateUnitCommand{
		Owner: owner, PropertyID: prop.ID, Name: "Room 1", BaseRateCents: 10000, MaxGuests: 4, CheckInHour: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, "moderate", unit.PolicyID)
	return unit.ID
}

func TestOwnerCommandsRequireOwnership(t *testing.T) {
	buses, _ := newBuses(t)
	unitID := seedUnit(t, buses)

	_, err := commands.Dispatch[unitsapp.RepriceUnitCommand, *dto.Unit](as("owner-2", middleware.RoleOwner), buses.Commands, unitsapp.RepriceUnitCommand{
		Owner: unitsapp.Owner{ID: "owner-2"}, UnitID: unitID, BaseRateCents: 1,
	})
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	_, err = commands.Dispatch[unitsapp.CreatePropertyCommand, *dto.Property](as("guest-1", middleware.RoleGuest), buses.Commands, unitsapp.CreatePropertyCommand{
		Owner: unitsapp.Owner{ID: "guest-1"}, Name: "Nope", Currency: "USD",
	})
	assert.ErrorIs(t, err, middleware.ErrForbidden)
}

func TestBookingFlowThroughBuses(t *testing.T) {
	buses, box := newBuses(t)
	unitID := seedUnit(t, buses)
	checkIn, checkOut := stayFromToday(30, 3)
	guest := as("guest-1", middleware.RoleGuest)

	hold := bookingapp.HoldBookingCommand{
		GuestID: "guest-1", UnitID: unitID, CheckIn: checkIn, CheckOut: checkOut, Adults: 2, IdempotencyKeyV: "hold-1",
	}
	first, err := commands.Dispatch[bookingapp.HoldBookingCommand, *dto.Booking](guest, buses.Commands, hold)
	require.NoError(t, err)
	assert.Equal(t, "pending", first.Status)
	assert.Equal(t, int64(34500), first.Total.Amount)

	again, err := commands.Dispatch[bookingapp.HoldBookingCommand, *dto.Booking](guest, buses.Commands, hold)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = commands.Dispatch[bookingapp.HoldBookingCommand, *dto.Booking](context.Background(), buses.Commands, hold)
	assert.True(t, apperr.IsKind(err, apperr.Unauthenticated))

	noKey := hold
	noKey.IdempotencyKeyV = ""
	_, err = commands.Dispatch[bookingapp.HoldBookingCommand, *dto.Booking](guest, buses.Commands, noKey)
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	rival := hold
	rival.GuestID, rival.IdempotencyKeyV = "guest-2", "hold-2"
	_, err = commands.Dispatch[bookingapp.HoldBookingCommand, *dto.Booking](as("guest-2", middleware.RoleGuest), buses.Commands, rival)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))

	paid, err := commands.Dispatch[bookingapp.PayBookingCommand, *dto.Booking](guest, buses.Commands, bookingapp.PayBookingCommand{
		BookingID: first.ID, GuestID: "guest-1", PaymentToken: "tok", IdempotencyKeyV: "pay-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", paid.Status)
	assert.Nil(t, paid.HoldExpiresAt)

	cal, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](context.Background(), buses.Queries, availabilityapp.GetCalendarQuery{UnitID: unitID})
	require.NoError(t, err)
	require.Len(t, cal.Blocks, 1)
	assert.Empty(t, cal.Blocks[0].Reference)

	cancelled, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](guest, buses.Commands, bookingapp.CancelBookingCommand{
		BookingID: first.ID, ActorID: "guest-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)

	list, err := queries.Ask[refundsapp.ListRefundsQuery, dto.RefundCollection](guest, buses.Queries, refundsapp.ListRefundsQuery{BookingID: first.ID, ActorID: "guest-1"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, int64(34500), list.Items[0].RequestedCents)

	assert.Contains(t, box.Flushed(), "booking.cancelled")
	assert.Contains(t, box.Flushed(), "refund.requested")
	assert.Contains(t, box.Flushed(), "availability.overbooking_prevented")
}
