package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-shopify-sync/internal/ports"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLocker implements per-key exclusive locks on top of redislock, so only
// one sync job runs per tenant even with multiple replicas.
type RedisLocker struct {
	client *redislock.Client
	logger zerolog.Logger
}

// NewRedisLocker creates a locker backed by the given Redis client.
func NewRedisLocker(client *redis.Client, logger zerolog.Logger) ports.Locker {
	return &RedisLocker{
		client: redislock.New(client),
		logger: logger,
	}
}

// TryLock obtains the key without retrying. When another holder owns it,
// ports.ErrLockHeld is returned.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ports.ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	release := func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn().Err(err).Str("key", key).Msg("failed to release lock")
		}
	}
	return release, nil
}
