// Package lock serializes conversions of one source document across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/docengine/internal/application/conversion"
	"github.com/erp/docengine/internal/domain/document"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix         = "docengine:lock:"
	defaultTTL        = 30 * time.Second
	retryInterval     = 100 * time.Millisecond
	defaultMaxRetries = 20
)

// RedisLocker implements conversion.Locker with redislock
type RedisLocker struct {
	client     *redislock.Client
	ttl        time.Duration
	maxRetries int
	logger     *zap.Logger
}

// Option configures a RedisLocker
type Option func(*RedisLocker)

// WithTTL sets how long a lock survives a crashed holder
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithMaxRetries sets how often Acquire retries a held lock before giving up
func WithMaxRetries(n int) Option {
	return func(l *RedisLocker) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker creates a new RedisLocker
func NewRedisLocker(client redis.UniversalClient, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client:     redislock.New(client),
		ttl:        defaultTTL,
		maxRetries: defaultMaxRetries,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire obtains the lock for key, retrying linearly while another holder owns it.
// A lock that stays taken surfaces as ErrConversionInProgress.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lk, err := l.client.Obtain(ctx, keyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), l.maxRetries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		l.logger.Debug("Conversion lock is held elsewhere", zap.String("key", key))
		return nil, document.ErrConversionInProgress.WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		err := lk.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// TTL expired before release; nothing left to clean up
			l.logger.Warn("Conversion lock expired before release", zap.String("key", key))
			return nil
		}
		return err
	}, nil
}

// NoopLocker never blocks. Used when cross-process locking is disabled.
type NoopLocker struct{}

// Acquire always succeeds
func (NoopLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

var (
	_ conversion.Locker = (*RedisLocker)(nil)
	_ conversion.Locker = NoopLocker{}
)
