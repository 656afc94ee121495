package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"roomstay/internal/app/policies"
	"roomstay/internal/domain/units"
)

const (
	keyPrefix      = "roomstay:lock:unit:"
	defaultTTL     = 10 * time.Second
	defaultRetry   = 25 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease expired never frees a lock someone else took since.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes writers on one unit across service instances with
// SET NX PX leases. TTL bounds how long a crashed holder blocks the unit and
// must exceed the longest critical section.
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
	Retry  time.Duration
	Logger *slog.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{Client: client, TTL: ttl, Logger: logger}
}

// Lock blocks until the lease is taken or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, unitID units.UnitID) (func(), error) {
	key := keyPrefix + string(unitID)
	token := uuid.NewString()
	ttl := l.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	retry := l.Retry
	if retry <= 0 {
		retry = defaultRetry
	}
	for {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) releaser(key, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		n, err := releaseScript.Run(ctx, l.Client, []string{key}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.warn("unit lock release failed", key, err)
			return
		}
		if n == 0 {
			l.warn("unit lock lease expired before release", key, nil)
		}
	}
}

func (l *RedisLocker) warn(msg, key string, err error) {
	if l.Logger == nil {
		return
	}
	attrs := []any{slog.String("key", key)}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	l.Logger.Warn(msg, attrs...)
}

var _ policies.UnitLocker = (*RedisLocker)(nil)
