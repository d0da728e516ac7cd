// Package cache holds the campaign running-total cache backing the public
// totals endpoint. Redis is a read accelerator only; the ledger row in
// PostgreSQL is the source of truth and a cold cache just means one extra
// database read.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const totalTTL = 5 * time.Minute

// ErrMiss is returned when no cached total exists for the campaign.
var ErrMiss = errors.New("cache miss")

// TotalsCache stores campaign totals, written through after every settle.
type TotalsCache struct {
	client *redis.Client
}

// NewTotalsCache wraps an existing redis client.
func NewTotalsCache(client *redis.Client) *TotalsCache {
	return &TotalsCache{client: client}
}

func totalKey(campaignID string) string {
	return "campaign:" + campaignID + ":total"
}

// SetTotal overwrites the cached total for a campaign.
func (c *TotalsCache) SetTotal(ctx context.Context, campaignID string, total int64) error {
	if err := c.client.Set(ctx, totalKey(campaignID), total, totalTTL).Err(); err != nil {
		return fmt.Errorf("cache: set total: %w", err)
	}
	return nil
}

// GetTotal reads the cached total, returning ErrMiss when absent.
func (c *TotalsCache) GetTotal(ctx context.Context, campaignID string) (int64, error) {
	val, err := c.client.Get(ctx, totalKey(campaignID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMiss
	}
	if err != nil {
		return 0, fmt.Errorf("cache: get total: %w", err)
	}
	total, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: parse total %q: %w", val, err)
	}
	return total, nil
}
