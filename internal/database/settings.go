package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/lib/pq"
)

// SettingsRepository stores the server settings operators change at runtime:
// the CORS policy and the rate of each limiter scope
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetCorsPolicy returns the stored policy, or nil when none is set
func (r *SettingsRepository) GetCorsPolicy(ctx context.Context) (*models.CorsPolicy, error) {
	p := &models.CorsPolicy{}
	err := r.db.QueryRowContext(ctx, `
		SELECT origins, allow_credentials, max_age, updated_at FROM cors_policy
	`).Scan(pq.Array(&p.Origins), &p.AllowCredentials, &p.MaxAge, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cors policy: %w", err)
	}
	return p, nil
}

// SetCorsPolicy replaces the stored policy
func (r *SettingsRepository) SetCorsPolicy(ctx context.Context, p *models.CorsPolicy) error {
	origins := NormalizeOrigins(p.Origins)
	if len(origins) == 0 {
		return errors.New("at least one origin is required")
	}
	if p.MaxAge < 0 {
		return fmt.Errorf("max age must not be negative: %d", p.MaxAge)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_policy (singleton, origins, allow_credentials, max_age, updated_at)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (singleton) DO UPDATE SET
			origins = EXCLUDED.origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
	`, pq.Array(origins), p.AllowCredentials, p.MaxAge, time.Now())
	if err != nil {
		return fmt.Errorf("set cors policy: %w", err)
	}
	return nil
}

// GetRateLimit returns the rate stored for scope, or nil when none is set
func (r *SettingsRepository) GetRateLimit(ctx context.Context, scope string) (*models.RateLimit, error) {
	l := &models.RateLimit{}
	err := r.db.QueryRowContext(ctx, `
		SELECT scope, rate, updated_at FROM rate_limits WHERE scope = $1
	`, scope).Scan(&l.Scope, &l.Rate, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit %s: %w", scope, err)
	}
	return l, nil
}

// SetRateLimit stores the rate for scope
func (r *SettingsRepository) SetRateLimit(ctx context.Context, scope, rate string) error {
	if !ValidRateScope(scope) {
		return fmt.Errorf("unknown rate limit scope %q (want one of %s)", scope, strings.Join(models.RateScopes, ", "))
	}
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return errors.New("rate cannot be empty")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_limits (scope, rate, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
	`, scope, rate, time.Now())
	if err != nil {
		return fmt.Errorf("set rate limit %s: %w", scope, err)
	}
	return nil
}

// ListRateLimits returns every stored rate ordered by scope
func (r *SettingsRepository) ListRateLimits(ctx context.Context) ([]*models.RateLimit, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT scope, rate, updated_at FROM rate_limits ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.RateLimit
	for rows.Next() {
		l := &models.RateLimit{}
		if err := rows.Scan(&l.Scope, &l.Rate, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rate limit: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ValidRateScope reports whether scope is one the server limits
func ValidRateScope(scope string) bool {
	return slices.Contains(models.RateScopes, scope)
}

// NormalizeOrigins trims origins, drops blanks and trailing slashes, and
// removes duplicates while keeping order. Entries may themselves be
// comma-separated lists.
func NormalizeOrigins(origins []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, entry := range origins {
		for _, o := range strings.Split(entry, ",") {
			o = strings.TrimRight(strings.TrimSpace(o), "/")
			if o != "" && !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	return out
}
