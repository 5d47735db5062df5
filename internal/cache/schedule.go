package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/benvon/schedule-builder/internal/database"
	"github.com/benvon/schedule-builder/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultScheduleTTL is how long a cached record stays valid
const DefaultScheduleTTL = 10 * time.Minute

const scheduleKeyPrefix = "schedule:"

// ScheduleCache is a read-through Redis cache in front of a schedule
// repository. Cache failures are logged and never fail the request.
type ScheduleCache struct {
	next   database.ScheduleRepositoryInterface
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewScheduleCache wraps next. A nil client disables caching.
func NewScheduleCache(next database.ScheduleRepositoryInterface, client *redis.Client, ttl time.Duration, logger *zap.Logger) *ScheduleCache {
	if ttl <= 0 {
		ttl = DefaultScheduleTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleCache{next: next, client: client, ttl: ttl, logger: logger}
}

func scheduleKey(userID uuid.UUID) string {
	return scheduleKeyPrefix + userID.String()
}

// GetByUserID serves from Redis when possible and fills it on a miss
func (c *ScheduleCache) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ScheduleRecord, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, scheduleKey(userID)).Bytes()
		switch {
		case err == nil:
			rec := &models.ScheduleRecord{}
			if jsonErr := json.Unmarshal(raw, rec); jsonErr == nil {
				return rec, nil
			}
			c.logger.Warn("schedule_cache_entry_corrupt", zap.String("user_id", userID.String()))
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("schedule_cache_read_failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	rec, err := c.next.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, rec)
	return rec, nil
}

// Upsert writes through to the repository and refreshes the cache
func (c *ScheduleCache) Upsert(ctx context.Context, userID uuid.UUID, data json.RawMessage, appVersion string) (*models.ScheduleRecord, error) {
	rec, err := c.next.Upsert(ctx, userID, data, appVersion)
	if err != nil {
		c.invalidate(ctx, userID)
		return nil, err
	}
	c.store(ctx, rec)
	return rec, nil
}

// DeleteByUserID deletes from the repository and evicts the cache entry
func (c *ScheduleCache) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	c.invalidate(ctx, userID)
	return c.next.DeleteByUserID(ctx, userID)
}

func (c *ScheduleCache) store(ctx context.Context, rec *models.ScheduleRecord) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("schedule_cache_encode_failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, scheduleKey(rec.UserID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("schedule_cache_write_failed", zap.String("user_id", rec.UserID.String()), zap.Error(err))
	}
}

func (c *ScheduleCache) invalidate(ctx context.Context, userID uuid.UUID) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, scheduleKey(userID)).Err(); err != nil {
		c.logger.Warn("schedule_cache_invalidate_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

var _ database.ScheduleRepositoryInterface = (*ScheduleCache)(nil)
