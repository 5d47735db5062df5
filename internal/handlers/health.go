package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function such as db.PingContext to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthChecker handles health check requests
type HealthChecker struct {
	// checks run in name order; a nil Pinger is reported as not configured
	checks map[string]Pinger
}

// NewHealthChecker creates a health checker that only checks the database
func NewHealthChecker(db Pinger) *HealthChecker {
	return NewHealthCheckerWithDeps(db, nil, nil)
}

// NewHealthCheckerWithDeps creates a health checker for the database, Redis and the job queue.
// redis and jobs may be nil when those backends are disabled.
func NewHealthCheckerWithDeps(db, redis, jobs Pinger) *HealthChecker {
	return &HealthChecker{checks: map[string]Pinger{
		"database": db,
		"redis":    redis,
		"rabbitmq": jobs,
	}}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	// Basic mode only reports that the server is running
	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.checks))
		for name, p := range h.checks {
			if p == nil {
				response.Checks[name] = "not configured"
				continue
			}
			if err := ping(r.Context(), p); err != nil {
				response.Status = "unhealthy"
				response.Checks[name] = "unhealthy: " + err.Error()
				continue
			}
			response.Checks[name] = "healthy"
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func ping(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.Ping(ctx)
}
