package commands

import (
	"context"
	"fmt"

	"roomstay/internal/domain/shared/apperr"
)

// Command is a write intent routed through the application bus.
type Command interface {
	Key() string
}

// Handler executes one command type with a typed result.
type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// Bus routes a command to its registered handler.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrHandlerNotFound = apperr.New(apperr.Invariant, "commands: handler not found")
	ErrInvalidCommand  = apperr.New(apperr.Invariant, "commands: invalid command for handler")
	ErrResultType      = apperr.New(apperr.Invariant, "commands: result type mismatch")
	ErrNilBus          = apperr.New(apperr.Invariant, "commands: nil bus")
)

// Dispatch sends cmd through bus and asserts the result type.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
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
