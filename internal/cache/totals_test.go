package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *TotalsCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTotalsCache(client)
}

func TestTotalsCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.SetTotal(ctx, "camp-1", 500))
	total, err := c.GetTotal(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), total)

	// Write-through overwrites, never increments: the ledger already did the
	// arithmetic.
	require.NoError(t, c.SetTotal(ctx, "camp-1", 1200))
	total, err = c.GetTotal(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), total)
}

func TestTotalsCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	_, err := c.GetTotal(ctx, "camp-unknown")
	assert.ErrorIs(t, err, ErrMiss)
}
