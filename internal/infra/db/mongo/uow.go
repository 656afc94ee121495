package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"roomstay/internal/app/uow"
	"roomstay/internal/domain/availability"
	domainbooking "roomstay/internal/domain/booking"
	"roomstay/internal/domain/cancellation"
	"roomstay/internal/domain/refund"
	"roomstay/internal/domain/units"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Repositories are shared; they join the transaction through the session
// carried by the bound context.
type Factory struct {
	DB *mongo.Database

	CatalogRepo  units.Catalog
	PolicyRepo   cancellation.Repository
	BookingRepo  domainbooking.Repository
	RefundRepo   refund.Repository
	CalendarRepo availability.Repository
}

// NewFactory builds a factory with the Mongo repositories for db.
func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		CatalogRepo:  NewCatalog(db),
		PolicyRepo:   NewPolicyRepository(db),
		BookingRepo:  NewBookingRepository(db),
		RefundRepo:   NewRefundRepository(db),
		CalendarRepo: NewCalendarRepository(db),
	}
}

// Begin starts a MongoDB session/transaction. Read-only units read a snapshot.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Majority()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Snapshot())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{f: f, session: session}, nil
}

type Unit struct {
	f       Factory
	session mongo.Session
}

func (u *Unit) Catalog() units.Catalog             { return u.f.CatalogRepo }
func (u *Unit) Policies() cancellation.Repository  { return u.f.PolicyRepo }
func (u *Unit) Bookings() domainbooking.Repository { return u.f.BookingRepo }
func (u *Unit) Refunds() refund.Repository         { return u.f.RefundRepo }
func (u *Unit) Calendars() availability.Repository { return u.f.CalendarRepo }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
	_ uow.Injector   = (*Unit)(nil)
)
