// Package lock provides cross-process writer locks for stock balances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"kardex/internal/core/apperror"
	"kardex/internal/domain/posting"
	"kardex/pkg/logger"
)

// Config controls lock acquisition.
type Config struct {
	// TTL bounds how long a key stays locked if the holder dies.
	TTL time.Duration
	// Wait is how long to retry a held key before giving up.
	Wait time.Duration
	// RetryInterval is the backoff between attempts while waiting.
	RetryInterval time.Duration
}

// DefaultConfig returns a 30s TTL and a 5s wait.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Second,
		Wait:          5 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

// RedisLocker obtains one redis lock per key. Keys are taken in sorted
// order so two writers sharing keys cannot deadlock.
type RedisLocker struct {
	client *redislock.Client
	cfg    Config
}

var (
	_ posting.Locker = (*RedisLocker)(nil)
	_ posting.Locker = NoopLocker{}
)

// NewRedisLocker creates a locker on top of rdb.
func NewRedisLocker(rdb redis.UniversalClient, cfg Config) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultConfig().RetryInterval
	}
	return &RedisLocker{client: redislock.New(rdb), cfg: cfg}
}

// Lock obtains every key or none. A key still held by someone else after
// the wait period yields apperror LOCKED.
func (l *RedisLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*redislock.Lock, 0, len(sorted))
	release := func() {
		// Reverse order; a release failure only means the TTL will expire the key.
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.Warn(ctx, "failed to release stock lock", "key", held[i].Key(), "error", err)
			}
		}
	}

	for _, key := range sorted {
		lk, err := l.obtain(ctx, key)
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, apperror.NewLocked(key)
			}
			return nil, fmt.Errorf("obtain lock %s: %w", key, err)
		}
		held = append(held, lk)
	}

	return release, nil
}

func (l *RedisLocker) obtain(ctx context.Context, key string) (*redislock.Lock, error) {
	opts := &redislock.Options{}
	if l.cfg.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Wait)
		defer cancel()
		opts.RetryStrategy = redislock.LinearBackoff(l.cfg.RetryInterval)
	}

	lk, err := l.client.Obtain(ctx, key, l.cfg.TTL, opts)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, redislock.ErrNotObtained
	}
	return lk, err
}

// NoopLocker grants every lock. Used when a single process owns the
// database, as in the offline CLI.
type NoopLocker struct{}

// Lock implements the posting Locker.
func (NoopLocker) Lock(context.Context, []string) (func(), error) {
	return func() {}, nil
}
