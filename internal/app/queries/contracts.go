package queries

import (
	"context"
	"fmt"

	"roomstay/internal/domain/shared/apperr"
)

// Query is a read request.
type Query interface {
	Key() string
}

// Handler answers one query type with a typed result.
type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc[Q Query, R any] func(ctx context.Context, query Q) (R, error)

func (f HandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}

// Bus routes a query to its registered handler.
type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

var (
	ErrHandlerNotFound = apperr.New(apperr.Invariant, "queries: handler not found")
	ErrInvalidQuery    = apperr.New(apperr.Invariant, "queries: invalid query for handler")
	ErrResultType      = apperr.New(apperr.Invariant, "queries: result type mismatch")
	ErrNilBus          = apperr.New(apperr.Invariant, "queries: nil bus")
)

// Ask runs the query through the provided bus, returning a typed result.
func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: got %T", ErrResultType, res)
	}
	return value, nil
}
