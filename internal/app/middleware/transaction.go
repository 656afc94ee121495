package middleware

import (
	"context"
	"errors"
	"fmt"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs the command inside a unit of work. The unit commits only
// when the handler succeeds; a failed rollback is reported next to the
// handler's own error.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var opts uow.TxOptions
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, fmt.Errorf("begin %s: %w", cmd.Key(), err)
			}
			txCtx := uow.Bind(ctx, unit)

			res, err := next.Dispatch(txCtx, cmd)
			if err != nil {
				if rbErr := unit.Rollback(txCtx); rbErr != nil {
					return nil, errors.Join(err, fmt.Errorf("rollback %s: %w", cmd.Key(), rbErr))
				}
				return nil, err
			}
			if err := unit.Commit(txCtx); err != nil {
				return nil, fmt.Errorf("commit %s: %w", cmd.Key(), err)
			}
			return res, nil
		})
	}
}
