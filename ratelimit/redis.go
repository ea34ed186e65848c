package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter is a fixed-window limiter shared by every replica using the
// same Redis. Windows are aligned to the Unix epoch.
type RedisLimiter struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
	opts   Options
	now    func() time.Time
}

// NewRedis creates a RedisLimiter on an existing client.
func NewRedis(logger *zap.Logger, client *redis.Client, prefix string, opts Options) *RedisLimiter {
	return &RedisLimiter{
		logger: logger,
		client: client,
		prefix: prefix,
		opts:   opts,
		now:    time.Now,
	}
}

func (l *RedisLimiter) key(clientID string, now time.Time) string {
	index := now.UnixMilli() / l.opts.Window.Milliseconds()
	return fmt.Sprintf("%s%s:%d", l.prefix, clientID, index)
}

// Admit counts the request in Redis. When Redis is unreachable the request
// is admitted.
func (l *RedisLimiter) Admit(ctx context.Context, clientID string) bool {
	if !l.opts.Enabled() {
		return true
	}

	key := l.key(clientID, l.now())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, l.opts.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("Rate limiter unavailable, admitting request",
			zap.String("client", clientID),
			zap.Error(err))
		return true
	}

	return incr.Val() <= int64(l.opts.MaxRequests)
}

// Start checks connectivity. An unreachable Redis is logged, not fatal.
func (l *RedisLimiter) Start(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		l.logger.Warn("Redis not reachable, rate limiting fails open until it is",
			zap.Error(err))
	}
	return nil
}

// Stop closes the Redis client.
func (l *RedisLimiter) Stop(context.Context) error {
	return l.client.Close()
}
