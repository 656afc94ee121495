package middleware

import (
	"context"
	"errors"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/outbox"
)

// OutboxFlush delivers events buffered while the command ran. It flushes on
// failure too: a rejected hold still reports the overbooking it prevented.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if flushErr := box.Flush(ctx); flushErr != nil {
				if err != nil {
					return nil, errors.Join(err, flushErr)
				}
				return nil, flushErr
			}
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
