package redis

import (
	"context"
	"os"
	"testing"
	"time"

	redisx "github.com/kirinyoku/quicktix/internal/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveRedis connects to the server named by QUICKTIX_TEST_REDIS_ADDR and
// empties database 15 for the test.
func liveRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("QUICKTIX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("QUICKTIX_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb, err := redisx.New(ctx, redisx.Config{Addr: addr, DB: 15})
	require.NoError(t, err)
	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })

	return rdb
}

func TestSeatSnapshotStoredAfterChangeIsNotServed(t *testing.T) {
	rdb := liveRedis(t)
	c := New(rdb)
	ctx := context.Background()

	// a slow reader takes the generation and loads the seats before a hold
	gen, err := c.SeatGeneration(ctx, 42)
	require.NoError(t, err)

	// the hold commits and invalidates
	require.NoError(t, c.InvalidateSeats(ctx, 42))

	// the slow reader stores its snapshot late
	_, err = GetOrSetJSON(ctx, c, redisx.KeyEventSeats(42, gen), time.Minute, func(context.Context) ([]string, error) {
		return []string{"A1:available"}, nil
	})
	require.NoError(t, err)

	next, err := c.SeatGeneration(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)

	got, err := GetOrSetJSON(ctx, c, redisx.KeyEventSeats(42, next), time.Minute, func(context.Context) ([]string, error) {
		return []string{"A1:held"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1:held"}, got)

	// event changes retire seat maps too
	require.NoError(t, c.InvalidateEvent(ctx, 42, "rock-night"))
	last, err := c.SeatGeneration(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, next+1, last)

	ttl, err := rdb.TTL(ctx, redisx.KeySeatGeneration(42)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)
}

func TestOTPBurnedAfterRepeatedMisses(t *testing.T) {
	rdb := liveRedis(t)
	s := NewOTPStore(rdb, time.Minute, 3)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "reset", "ann@example.com", "1234"))

	for i := 0; i < 3; i++ {
		ok, err := s.Consume(ctx, "reset", "ann@example.com", "0000")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	ok, err := s.Consume(ctx, "reset", "ann@example.com", "1234")
	require.NoError(t, err)
	assert.False(t, ok, "code must be burned after the third miss")

	// a fresh code starts with a clean count
	require.NoError(t, s.Save(ctx, "reset", "ann@example.com", "5678"))
	ok, err = s.Consume(ctx, "reset", "ann@example.com", "0000")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Consume(ctx, "reset", "ann@example.com", "5678")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "reset", "ann@example.com", "5678")
	require.NoError(t, err)
	assert.False(t, ok)
}
