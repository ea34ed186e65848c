package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/isdmx/pohrun/config"
)

// Limiter decides whether a client may start another execution.
type Limiter interface {
	Admit(ctx context.Context, clientID string) bool
}

// Lifecycle is implemented by limiters that own background work or a
// connection.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options configures a fixed window.
type Options struct {
	Window      time.Duration
	MaxRequests int
}

// Enabled reports whether the options limit anything. A non-positive
// MaxRequests disables limiting.
func (o Options) Enabled() bool {
	return o.MaxRequests > 0 && o.Window >= time.Millisecond
}

// New creates the limiter selected by rate_limit.backend.
func New(logger *zap.Logger, cfg *config.Config) (Limiter, error) {
	opts := Options{
		Window:      cfg.GetRateLimitWindow(),
		MaxRequests: cfg.RateLimit.MaxRequests,
	}

	if !opts.Enabled() {
		logger.Info("Rate limiting disabled")
	}

	switch cfg.RateLimit.Backend {
	case "memory":
		logger.Info("Using in-process rate limiter",
			zap.Duration("window", opts.Window),
			zap.Int("max_requests", opts.MaxRequests))
		return NewInProcess(opts), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		logger.Info("Using Redis rate limiter",
			zap.String("addr", cfg.RateLimit.RedisAddr),
			zap.Duration("window", opts.Window),
			zap.Int("max_requests", opts.MaxRequests))
		return NewRedis(logger, client, cfg.RateLimit.KeyPrefix, opts), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.RateLimit.Backend)
	}
}
