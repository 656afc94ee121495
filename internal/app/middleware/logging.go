package middleware

import (
	"context"
	"log/slog"
	"time"

	"roomstay/internal/app/commands"
	"roomstay/internal/domain/shared/apperr"
)

// Logging records each command with its duration. Invariant and transition
// failures are logged at error level.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			started := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			attrs := []any{slog.String("command", cmd.Key()), slog.Duration("elapsed", time.Since(started))}
			switch kind := apperr.KindOf(err); {
			case err == nil:
				logger.DebugContext(ctx, "command handled", attrs...)
			case kind == apperr.Invariant || kind == apperr.InvalidTransition || kind == "":
				logger.ErrorContext(ctx, "command failed", append(attrs, slog.String("kind", string(kind)), slog.Any("error", err))...)
			default:
				logger.InfoContext(ctx, "command rejected", append(attrs, slog.String("kind", string(kind)), slog.Any("error", err))...)
			}
			return res, err
		})
	}
}
