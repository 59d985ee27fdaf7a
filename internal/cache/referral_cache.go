// Package cache provides a small Redis-backed read cache for the
// referral status endpoint, which the client polls on every visit to the
// analysis screen. The cache is optional: a nil *ReferralStatusCache is
// a no-op and every method is nil-receiver safe.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const statusTTL = 5 * time.Minute

type ReferralStatusCache struct {
	rdb *redis.Client
}

func NewReferralStatusCache(redisURL string) (*ReferralStatusCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	return &ReferralStatusCache{rdb: rdb}, nil
}

func statusKey(userID uuid.UUID) string {
	return "referral:status:" + userID.String()
}

func (c *ReferralStatusCache) Get(ctx context.Context, userID uuid.UUID) (*domain.ReferralStatus, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, statusKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var status domain.ReferralStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, false
	}
	return &status, true
}

func (c *ReferralStatusCache) Set(ctx context.Context, userID uuid.UUID, status *domain.ReferralStatus) {
	if c == nil || status == nil {
		return
	}

	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, statusKey(userID), raw, statusTTL)
}

func (c *ReferralStatusCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c == nil {
		return
	}
	c.rdb.Del(ctx, statusKey(userID))
}

func (c *ReferralStatusCache) Close() error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
