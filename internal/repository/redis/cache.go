package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisx "github.com/kirinyoku/quicktix/internal/redis"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a JSON read-through cache over Redis for the read models.
// Concurrent misses on the same key share one loader call, and a Redis
// failure on read falls through to the loader.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) load(ctx context.Context, key string, out any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) store(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetOrSetJSON returns the value cached under key, or runs loader, caches
// its result for ttl and returns it. Loader errors are never cached.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	var hit T
	if ok, err := c.load(ctx, key, &hit); err == nil && ok {
		return hit, nil
	}

	res, err, _ := c.sf.Do(key, func() (any, error) {
		var again T
		if ok, err := c.load(ctx, key, &again); err == nil && ok {
			return again, nil
		}

		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		// a failed write only costs the next reader a reload
		_ = c.store(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache %s: unexpected %T", key, res)
	}
	return v, nil
}

// seatGenerationTTL outlives any seat snapshot, so a counter that expires
// cannot resurrect one.
const seatGenerationTTL = 24 * time.Hour

// ListGeneration is the counter filtered listings are keyed under. It moves
// on every event change, so listings cached before the change are skipped.
func (c *Cache) ListGeneration(ctx context.Context) (int64, error) {
	return c.generation(ctx, redisx.KeyListGeneration())
}

// SeatGeneration is the counter seat maps of eventID are keyed under. It
// moves on every seat change. A reader that takes the generation before it
// loads the seats can only ever store its snapshot under a generation that
// was current when the load started, so a snapshot written after a later
// change is never read.
func (c *Cache) SeatGeneration(ctx context.Context, eventID int64) (int64, error) {
	return c.generation(ctx, redisx.KeySeatGeneration(eventID))
}

func (c *Cache) generation(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// InvalidateSeats retires the cached seat maps of an event.
func (c *Cache) InvalidateSeats(ctx context.Context, eventID int64) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		bumpSeatGeneration(ctx, p, eventID)
		return nil
	})
	return err
}

func bumpSeatGeneration(ctx context.Context, p redis.Pipeliner, eventID int64) {
	p.Incr(ctx, redisx.KeySeatGeneration(eventID))
	p.Expire(ctx, redisx.KeySeatGeneration(eventID), seatGenerationTTL)
}

// InvalidateEvent drops everything derived from one event: its details, the
// fixed listings and, through the generation counters, its seat maps and
// every filtered listing.
func (c *Cache) InvalidateEvent(ctx context.Context, eventID int64, slug string) error {
	keys := []string{
		redisx.KeyTrending(),
		redisx.KeyUpcoming(),
		redisx.KeyLocations(),
	}
	if slug != "" {
		keys = append(keys, redisx.KeyEventDetails(slug))
	}

	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.Incr(ctx, redisx.KeyListGeneration())
		bumpSeatGeneration(ctx, p, eventID)
		return nil
	})
	return err
}

func (c *Cache) InvalidateArtists(ctx context.Context) error {
	return c.rdb.Del(ctx, redisx.KeyArtists()).Err()
}
