package wiring

import (
	"context"
	"fmt"
	"log/slog"

	"roomstay/internal/app/commands"
	availabilityapp "roomstay/internal/app/handlers/availability"
	bookingapp "roomstay/internal/app/handlers/booking"
	opsapp "roomstay/internal/app/handlers/ops"
	refundsapp "roomstay/internal/app/handlers/refunds"
	unitsapp "roomstay/internal/app/handlers/units"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/outbox"
	"roomstay/internal/app/queries"
	"roomstay/internal/app/services/checkout"
	"roomstay/internal/app/services/lifecycle"
	refundsvc "roomstay/internal/app/services/refunds"
	"roomstay/internal/app/uow"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	UoW         uow.UoWFactory
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Idempotency middleware.IdempotencyStore
	Lifecycle   *lifecycle.Manager
	Checkout    *checkout.Orchestrator
	Refunds     *refundsvc.Service
	Logger      *slog.Logger
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// Build registers every handler. Booking lifecycle commands write through the
// services, which serialize per unit; owner catalog commands run inside a
// unit of work.
func Build(d Deps) Buses {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := middleware.NewStructValidator()
	authorizer := middleware.RoleAuthorizer{}
	bookings := d.Lifecycle.Bookings
	catalog := d.Lifecycle.Catalog

	booking := commands.NewInMemoryBus()
	commands.RegisterHandler(booking, bookingapp.HoldBookingCommand{}.Key(), &bookingapp.HoldBookingHandler{Checkout: d.Checkout})
	commands.RegisterHandler(booking, bookingapp.PayBookingCommand{}.Key(), &bookingapp.PayBookingHandler{Checkout: d.Checkout, Bookings: bookings})
	commands.RegisterHandler(booking, bookingapp.ApplyPaymentResultCommand{}.Key(), &bookingapp.ApplyPaymentResultHandler{Checkout: d.Checkout})
	commands.RegisterHandler(booking, bookingapp.ConfirmBookingCommand{}.Key(), &bookingapp.ConfirmBookingHandler{Checkout: d.Checkout})
	commands.RegisterHandler(booking, bookingapp.AbortBookingCommand{}.Key(), &bookingapp.AbortBookingHandler{Lifecycle: d.Lifecycle, Bookings: bookings})
	commands.RegisterHandler(booking, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		Lifecycle: d.Lifecycle, Bookings: bookings, Refunds: d.Refunds, Logger: logger,
	})
	commands.RegisterHandler(booking, bookingapp.StayCommand{}.Key(), &bookingapp.StayHandler{Lifecycle: d.Lifecycle, Bookings: bookings, Catalog: catalog})
	commands.RegisterHandler(booking, bookingapp.RecordBalanceCommand{}.Key(), &bookingapp.RecordBalanceHandler{Lifecycle: d.Lifecycle})
	commands.RegisterHandler(booking, availabilityapp.BlockDatesCommand{}.Key(), &availabilityapp.BlockDatesHandler{Lifecycle: d.Lifecycle})
	commands.RegisterHandler(booking, availabilityapp.UnblockDatesCommand{}.Key(), &availabilityapp.UnblockDatesHandler{Lifecycle: d.Lifecycle})
	commands.RegisterHandler(booking, refundsapp.RequestRefundCommand{}.Key(), &refundsapp.RequestRefundHandler{Refunds: d.Refunds})
	commands.RegisterHandler(booking, refundsapp.ApproveRefundCommand{}.Key(), &refundsapp.ApproveRefundHandler{Refunds: d.Refunds})
	commands.RegisterHandler(booking, refundsapp.RejectRefundCommand{}.Key(), &refundsapp.RejectRefundHandler{Refunds: d.Refunds})
	commands.RegisterHandler(booking, refundsapp.WithdrawRefundCommand{}.Key(), &refundsapp.WithdrawRefundHandler{Refunds: d.Refunds})
	commands.RegisterHandler(booking, refundsapp.PayoutRefundCommand{}.Key(), &refundsapp.PayoutRefundHandler{Refunds: d.Refunds})
	commands.RegisterHandler(booking, opsapp.ReconcileCommand{}.Key(), &opsapp.ReconcileHandler{Lifecycle: d.Lifecycle})
	commands.RegisterHandler(booking, opsapp.ExpireHoldsCommand{}.Key(), &opsapp.ExpireHoldsHandler{Lifecycle: d.Lifecycle})

	writer := unitsapp.Writer{Outbox: d.Outbox, Encoder: d.Encoder, Logger: logger}
	owner := commands.NewInMemoryBus()
	commands.RegisterHandler(owner, unitsapp.CreatePropertyCommand{}.Key(), &unitsapp.CreatePropertyHandler{Writer: writer})
	commands.RegisterHandler(owner, unitsapp.CreateUnitCommand{}.Key(), &unitsapp.CreateUnitHandler{Writer: writer})
	commands.RegisterHandler(owner, unitsapp.RepriceUnitCommand{}.Key(), &unitsapp.RepriceUnitHandler{Writer: writer})
	commands.RegisterHandler(owner, unitsapp.AddSeasonalRateCommand{}.Key(), &unitsapp.AddSeasonalRateHandler{Writer: writer})
	commands.RegisterHandler(owner, unitsapp.RemoveSeasonalRateCommand{}.Key(), &unitsapp.RemoveSeasonalRateHandler{Writer: writer})
	commands.RegisterHandler(owner, unitsapp.UpsertPromotionCommand{}.Key(), &unitsapp.UpsertPromotionHandler{Writer: writer})
	commands.RegisterHandler(owner, unitsapp.UpsertAddOnCommand{}.Key(), &unitsapp.UpsertAddOnHandler{Writer: writer})
	commands.RegisterHandler(owner, unitsapp.SetCancellationPolicyCommand{}.Key(), &unitsapp.SetCancellationPolicyHandler{Writer: writer})

	bookingChain := []middleware.CommandMiddleware{
		middleware.Logging(logger),
		middleware.Authorization(authorizer),
		middleware.Validation(validator),
	}
	if d.Idempotency != nil {
		bookingChain = append(bookingChain, middleware.Idempotency(d.Idempotency, middleware.JSONResultCodec{}))
	}
	if d.Outbox != nil {
		bookingChain = append(bookingChain, middleware.OutboxFlush(d.Outbox))
	}
	ownerChain := []middleware.CommandMiddleware{
		middleware.Logging(logger),
		middleware.Authorization(authorizer),
		middleware.Validation(validator),
	}
	if d.Outbox != nil {
		ownerChain = append(ownerChain, middleware.OutboxFlush(d.Outbox))
	}
	ownerChain = append(ownerChain, middleware.Transaction(d.UoW, nil))

	router := routedBus{routes: map[string]commands.Bus{}}
	router.mount(booking, middleware.ChainCommands(booking, bookingChain...))
	router.mount(owner, middleware.ChainCommands(owner, ownerChain...))

	q := queries.NewInMemoryBus()
	queries.RegisterHandler(q, bookingapp.QuoteStayQuery{}.Key(), &bookingapp.QuoteStayHandler{Checkout: d.Checkout})
	queries.RegisterHandler(q, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: d.UoW})
	queries.RegisterHandler(q, bookingapp.ListGuestBookingsQuery{}.Key(), &bookingapp.ListGuestBookingsHandler{UoWFactory: d.UoW, Logger: logger})
	queries.RegisterHandler(q, bookingapp.ListUnitBookingsQuery{}.Key(), &bookingapp.ListUnitBookingsHandler{UoWFactory: d.UoW})
	queries.RegisterHandler(q, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{Index: d.Lifecycle.Index, Catalog: catalog})
	queries.RegisterHandler(q, refundsapp.PreviewRefundQuery{}.Key(), &refundsapp.PreviewRefundHandler{Refunds: d.Refunds, Bookings: bookings})
	queries.RegisterHandler(q, refundsapp.ListRefundsQuery{}.Key(), &refundsapp.ListRefundsHandler{Refunds: d.Refunds, Bookings: bookings})
	queries.RegisterHandler(q, unitsapp.GetUnitQuery{}.Key(), &unitsapp.GetUnitHandler{UoWFactory: d.UoW})
	queries.RegisterHandler(q, unitsapp.ListUnitsQuery{}.Key(), &unitsapp.ListUnitsHandler{UoWFactory: d.UoW})
	queries.RegisterHandler(q, unitsapp.GetPolicyQuery{}.Key(), &unitsapp.GetPolicyHandler{UoWFactory: d.UoW})

	return Buses{
		Commands: router,
		Queries: middleware.ChainQueries(q,
			middleware.QueryAuthorization(authorizer),
			middleware.QueryValidation(validator),
		),
	}
}

type routedBus struct {
	routes map[string]commands.Bus
}

func (r routedBus) mount(registry *commands.InMemoryBus, chained commands.Bus) {
	for _, key := range registry.Keys() {
		r.routes[key] = chained
	}
}

func (r routedBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	bus, ok := r.routes[cmd.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", commands.ErrHandlerNotFound, cmd.Key())
	}
	return bus.Dispatch(ctx, cmd)
}
