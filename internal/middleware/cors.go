package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const (
	defaultCORSOrigin = "http://localhost:3000"
	defaultCORSMaxAge = 86400
)

// CORSPolicyStore loads the stored CORS policy. Implemented by database.SettingsRepository.
type CORSPolicyStore interface {
	GetCorsPolicy(ctx context.Context) (*models.CorsPolicy, error)
}

// NewCORSReloader creates a CORS middleware that loads its policy from store
// and hot-reloads it. fallbackOrigins (comma-separated) is used when nothing is stored.
func NewCORSReloader(store CORSPolicyStore, fallbackOrigins string, log *zap.Logger, interval time.Duration) *Reloader {
	fallback := database.NormalizeOrigins(strings.Split(fallbackOrigins, ","))
	build := func(ctx context.Context) (func(http.Handler) http.Handler, error) {
		policy, err := store.GetCorsPolicy(ctx)
		if err != nil {
			log.Debug("cors_policy_unavailable_using_fallback", zap.Error(err))
			policy = nil
		}
		return cors.New(corsOptions(policy, fallback)).Handler, nil
	}
	return NewReloader("cors", build, log, interval)
}

// corsOptions allows the methods the schedule API serves, plus the
// Authorization header the planner and browser clients send
func corsOptions(policy *models.CorsPolicy, fallback []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
	if policy == nil {
		opts.AllowedOrigins = fallback
		opts.AllowCredentials = true
		opts.MaxAge = defaultCORSMaxAge
	} else {
		opts.AllowedOrigins = database.NormalizeOrigins(policy.Origins)
		opts.AllowCredentials = policy.AllowCredentials
		opts.MaxAge = policy.MaxAge
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{defaultCORSOrigin}
	}
	return opts
}
