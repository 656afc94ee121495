// Package bootstrap assembles the application from configuration: it picks
// storage, lock and messaging drivers and wires them into the buses, the HTTP
// server and the background workers.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"roomstay/internal/app/middleware"
	"roomstay/internal/app/outbox"
	"roomstay/internal/app/policies"
	"roomstay/internal/app/services/checkout"
	"roomstay/internal/app/services/lifecycle"
	refundsvc "roomstay/internal/app/services/refunds"
	"roomstay/internal/app/uow"
	"roomstay/internal/app/wiring"
	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/pricing"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/units"
	"roomstay/internal/infra/broker/kafka"
	"roomstay/internal/infra/config"
	mongostore "roomstay/internal/infra/db/mongo"
	"roomstay/internal/infra/db/postgres"
	ginserver "roomstay/internal/infra/http/gin"
	"roomstay/internal/infra/inbox"
	"roomstay/internal/infra/lock"
	"roomstay/internal/infra/obs"
	infraoutbox "roomstay/internal/infra/outbox"
	"roomstay/internal/infra/payments"
	"roomstay/internal/infra/storage/memory"
	"roomstay/internal/infra/storage/s3"
)

const eventSource = "roomstay"

// App is a fully wired process. Run serves HTTP and drives the background
// workers until the context ends.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Buses     wiring.Buses
	Lifecycle *lifecycle.Manager
	Server    *http.Server

	probes  map[string]obs.Probe
	workers []worker
	closers []func(ctx context.Context) error
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

type stores struct {
	uow         uow.UoWFactory
	catalog     units.Catalog
	policies    cancellation.Repository
	bookings    booking.Repository
	refunds     refund.Repository
	calendars   availability.Repository
	outbox      outbox.Outbox
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
}

// Build connects every configured backend. On error, whatever was already
// opened is closed.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (app *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app = &App{Config: cfg, Logger: logger, probes: map[string]obs.Probe{}}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
	}

	st, err := app.openStores(ctx, producer)
	if err != nil {
		return nil, err
	}

	index, err := app.openIndex(ctx, st.calendars)
	if err != nil {
		return nil, err
	}
	locker, err := app.openLocker(ctx)
	if err != nil {
		return nil, err
	}
	archive, err := app.openArchive()
	if err != nil {
		return nil, err
	}

	var gateway policies.PaymentGateway = payments.NewSandboxGateway()
	gateway = payments.NewBreakerGateway(gateway, payments.BreakerSettings{
		Name:        "payments",
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
		CallTimeout: cfg.PaymentTimeout,
	}, logger)

	engine := pricing.NewEngine(logger)
	engine.MaxStayNights = cfg.MaxStayNights
	quoter := &pricing.Quoter{Catalog: st.catalog, Engine: engine}
	manager := &lifecycle.Manager{
		Catalog:    st.catalog,
		Policies:   st.policies,
		Bookings:   st.bookings,
		Index:      index,
		Locker:     locker,
		Quoter:     quoter,
		Outbox:     st.outbox,
		Encoder:    outbox.JSONEventEncoder{},
		Archive:    archive,
		HoldWindow: cfg.HoldWindow,
		Logger:     logger,
	}
	orchestrator := &checkout.Orchestrator{
		Lifecycle:   manager,
		Bookings:    st.bookings,
		Quoter:      quoter,
		Gateway:     gateway,
		Backoff:     cfg.RetryBackoff,
		MaxAttempts: cfg.PaymentMaxAttempts,
		Timeout:     cfg.PaymentTimeout,
		Logger:      logger,
	}
	refunds := &refundsvc.Service{
		Bookings: st.bookings,
		Refunds:  st.refunds,
		Locker:   locker,
		Gateway:  gateway,
		Outbox:   st.outbox,
		Encoder:  outbox.JSONEventEncoder{},
		Logger:   logger,
	}
	app.Lifecycle = manager
	app.Buses = wiring.Build(wiring.Deps{
		UoW:         st.uow,
		Outbox:      st.outbox,
		Encoder:     outbox.JSONEventEncoder{},
		Idempotency: st.idempotency,
		Lifecycle:   manager,
		Checkout:    orchestrator,
		Refunds:     refunds,
		Logger:      logger,
	})

	app.workers = append(app.workers, worker{name: "hold-sweeper", run: func(ctx context.Context) error {
		return manager.RunSweeper(ctx, cfg.HoldSweepInterval)
	}})
	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, kafka.PaymentEventsHandler{
			Commands: app.Buses.Commands,
			Inbox:    st.inbox,
			Logger:   logger,
		}, cfg.RetryBackoff, logger)
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		topic := cfg.Topic(cfg.PaymentEventsTopic)
		app.workers = append(app.workers, worker{name: "payment-events", run: func(ctx context.Context) error {
			return consumer.Run(ctx, []string{topic})
		}})
	}

	app.Server = ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Probes: app.probes}, app.handlers())
	return app, nil
}

func (a *App) handlers() ginserver.Handlers {
	b := a.Buses
	return ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Commands: b.Commands, Queries: b.Queries, Logger: a.Logger},
		Availability: ginserver.AvailabilityHandler{Commands: b.Commands, Queries: b.Queries, Logger: a.Logger},
		Refund:       ginserver.RefundHandler{Commands: b.Commands, Queries: b.Queries, Logger: a.Logger},
		Payment:      ginserver.PaymentHandler{Commands: b.Commands, Logger: a.Logger},
		Catalog:      ginserver.CatalogHandler{Queries: b.Queries, Logger: a.Logger},
		Owner:        ginserver.OwnerHandler{Commands: b.Commands, Logger: a.Logger},
		Ops:          ginserver.OpsHandler{Commands: b.Commands, Logger: a.Logger},
	}
}

func (a *App) openStores(ctx context.Context, producer *kafka.Producer) (stores, error) {
	cfg := a.Config
	if cfg.StorageDriver == config.DriverMongo {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, fmt.Errorf("mongo: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.probes["mongo"] = client.Ping
		if err := client.EnsureIndexes(ctx); err != nil {
			return stores{}, fmt.Errorf("mongo indexes: %w", err)
		}
		idem, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return stores{}, fmt.Errorf("mongo idempotency: %w", err)
		}
		box, err := infraoutbox.NewStore(ctx, client.DB)
		if err != nil {
			return stores{}, fmt.Errorf("mongo outbox: %w", err)
		}
		received, err := inbox.NewStore(ctx, client.DB, cfg.KafkaGroupID)
		if err != nil {
			return stores{}, fmt.Errorf("mongo inbox: %w", err)
		}
		if producer != nil {
			w := &infraoutbox.Worker{
				Store:       box,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Source:      eventSource,
				Backoff:     cfg.RetryBackoff,
				Logger:      a.Logger,
			}
			a.workers = append(a.workers, worker{name: "outbox", run: w.Run})
		} else {
			a.Logger.Warn("no kafka brokers configured; outbox events stay pending")
		}
		f := mongostore.NewFactory(client.DB)
		return stores{
			uow:         f,
			catalog:     f.CatalogRepo,
			policies:    f.PolicyRepo,
			bookings:    f.BookingRepo,
			refunds:     f.RefundRepo,
			calendars:   f.CalendarRepo,
			outbox:      box,
			idempotency: idem,
			inbox:       received,
		}, nil
	}

	var notifier policies.Notifier = memory.LogNotifier{Logger: a.Logger}
	if producer != nil {
		notifier = infraoutbox.Notifier{Producer: producer, TopicPrefix: cfg.KafkaTopicPrefix, Source: eventSource}
	}
	f := memory.Factory{
		CatalogRepo:  memory.NewCatalog(),
		PolicyRepo:   memory.NewPolicyRepository(),
		BookingRepo:  memory.NewBookingRepository(),
		RefundRepo:   memory.NewRefundRepository(),
		CalendarRepo: memory.NewCalendarRepository(),
	}
	return stores{
		uow:         f,
		catalog:     f.CatalogRepo,
		policies:    f.PolicyRepo,
		bookings:    f.BookingRepo,
		refunds:     f.RefundRepo,
		calendars:   f.CalendarRepo,
		outbox:      memory.NewOutbox(notifier, a.Logger),
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		inbox:       inbox.NewMemoryStore(),
	}, nil
}

func (a *App) openIndex(ctx context.Context, calendars availability.Repository) (availability.Index, error) {
	if a.Config.AvailabilityDriver != config.DriverPostgres {
		return availability.NewCalendarIndex(calendars), nil
	}
	db, err := postgres.Open(ctx, a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	a.probes["postgres"] = db.Ping
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return postgres.NewBlockIndex(db), nil
}

func (a *App) openLocker(ctx context.Context) (policies.UnitLocker, error) {
	if a.Config.LockDriver != config.DriverRedis {
		return memory.NewUnitLocker(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return lock.NewRedisLocker(client, a.Config.LockTTL, a.Logger), nil
}

func (a *App) openArchive() (policies.QuoteArchive, error) {
	cfg := a.Config
	if cfg.S3Endpoint == "" {
		return memory.NewQuoteArchive(), nil
	}
	archive, err := s3.NewQuoteArchive(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("s3 archive: %w", err)
	}
	return archive, nil
}

// Run serves HTTP and the background workers. It returns when ctx ends and
// everything has stopped, or as soon as one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range a.workers {
		g.Go(func() error {
			a.Logger.Info("worker starting", slog.String("worker", w.name))
			err := w.run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", w.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		a.Logger.Info("HTTP server starting", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Config.ShutdownTimeout > 0 {
		return a.Config.ShutdownTimeout
	}
	return 10 * time.Second
}

// Close releases connections in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
