package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

const (
	pingTimeout  = 3 * time.Second
	pingAttempts = 5
	pingBackoff  = 200 * time.Millisecond
)

// New connects to Redis and waits until it answers PING. A refused ping is
// retried with backoff, since the service often starts next to its Redis.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	const op = "redisx.New"

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	err := waitReady(ctx, pingAttempts, pingBackoff, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return client, nil
}

func waitReady(ctx context.Context, attempts int, backoff time.Duration, ping func(context.Context) error) error {
	var err error
	for i := 1; ; i++ {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = ping(pctx)
		cancel()

		if err == nil || i >= attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
