package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, FamilyCache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedisCache(context.Background(), "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return mr, c
}

func TestFamilyCache_MarkAndCheck(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	revoked, err := c.IsRevoked(ctx, "fam-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, c.MarkRevoked(ctx, "fam-1", time.Hour))

	revoked, err = c.IsRevoked(ctx, "fam-1")
	require.NoError(t, err)
	require.True(t, revoked)

	require.True(t, mr.Exists(DefaultPrefix+"fam-1"))
	require.Equal(t, time.Hour, mr.TTL(DefaultPrefix+"fam-1"))

	// Другие семейства не затронуты.
	revoked, err = c.IsRevoked(ctx, "fam-2")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestFamilyCache_ExpiresWithTTL(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkRevoked(ctx, "fam", time.Minute))
	mr.FastForward(2 * time.Minute)

	revoked, err := c.IsRevoked(ctx, "fam")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestFamilyCache_NonPositiveTTL_NoOp(t *testing.T) {
	mr, c := newTestCache(t)

	require.NoError(t, c.MarkRevoked(context.Background(), "fam", 0))
	require.False(t, mr.Exists(DefaultPrefix+"fam"))
}

func TestFamilyCache_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c := NewFromClient(rdb, "custom:")
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.MarkRevoked(context.Background(), "fam", time.Hour))
	require.True(t, mr.Exists("custom:fam"))
}

func TestFamilyCache_ServerDown(t *testing.T) {
	mr, c := newTestCache(t)
	mr.Close()

	_, err := c.IsRevoked(context.Background(), "fam")
	require.Error(t, err)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-url", "")
	require.Error(t, err)
}
