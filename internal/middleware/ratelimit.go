package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// DefaultRate is used when no rate is stored, in ulule/limiter format
const DefaultRate = "5-S"

// RateLimitStore reads and seeds the stored rate of a scope. Implemented by database.SettingsRepository.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, scope string) (*models.RateLimit, error)
	SetRateLimit(ctx context.Context, scope, rate string) error
}

// NewRateLimitStore returns a Redis-backed limiter store, or an in-process one
// when client is nil
func NewRateLimitStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memorystore.NewStore(), nil
	}
	store, err := redisstore.NewStore(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	return store, nil
}

// NewRateLimitReloader creates a per-client-IP rate limiter for scope whose
// rate is read from settings and hot-reloaded. Counters are kept per scope,
// so a burst of schedule saves does not lock a client out of login.
// A scope with no stored rate is seeded with defaultRate.
func NewRateLimitReloader(store limiter.Store, settings RateLimitStore, scope, defaultRate string, log *zap.Logger, interval time.Duration) *Reloader {
	if defaultRate == "" {
		defaultRate = DefaultRate
	}
	keyGetter := func(r *http.Request) string {
		return scope + ":" + request.ClientIP(r)
	}
	build := func(ctx context.Context) (func(http.Handler) http.Handler, error) {
		formatted := resolveRate(ctx, settings, scope, defaultRate, log)
		rate, err := limiter.NewRateFromFormatted(formatted)
		if err != nil {
			log.Error("invalid_rate_limit_using_default",
				zap.String("scope", scope),
				zap.String("rate", formatted),
				zap.String("default_rate", defaultRate),
				zap.Error(err),
			)
			if rate, err = limiter.NewRateFromFormatted(defaultRate); err != nil {
				return nil, fmt.Errorf("invalid default rate %q: %w", defaultRate, err)
			}
		}
		mw := stdlibmw.NewMiddleware(limiter.New(store, rate), stdlibmw.WithKeyGetter(keyGetter))
		return mw.Handler, nil
	}
	return NewReloader("ratelimit_"+scope, build, log, interval)
}

func resolveRate(ctx context.Context, settings RateLimitStore, scope, defaultRate string, log *zap.Logger) string {
	stored, err := settings.GetRateLimit(ctx, scope)
	switch {
	case err != nil:
		log.Warn("rate_limit_unavailable_using_default", zap.String("scope", scope), zap.Error(err))
	case stored != nil && stored.Rate != "":
		return stored.Rate
	default:
		if err := settings.SetRateLimit(ctx, scope, defaultRate); err != nil {
			log.Error("failed_to_seed_rate_limit", zap.String("scope", scope), zap.Error(err))
		}
	}
	return defaultRate
}
