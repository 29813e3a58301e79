package redis

import (
	"context"
	"fmt"
	"time"

	redisx "github.com/kirinyoku/quicktix/internal/redis"
	"github.com/redis/go-redis/v9"
)

// luaConsumeOTP deletes the stored code only when it matches, so a code can
// be redeemed once. Wrong guesses are counted and the code is burned once
// they reach the limit.
// KEYS[1] = code
// KEYS[2] = failure counter
// ARGV[1] = candidate code
// ARGV[2] = max failures
// returns 1 redeemed, 0 rejected, -1 rejected and burned
const luaConsumeOTP = `
local v = redis.call('GET', KEYS[1])
if not v then
  return 0
end
if v == ARGV[1] then
  redis.call('DEL', KEYS[1], KEYS[2])
  return 1
end
local fails = redis.call('INCR', KEYS[2])
if fails == 1 then
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl > 0 then
    redis.call('PEXPIRE', KEYS[2], ttl)
  end
end
if fails >= tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1], KEYS[2])
  return -1
end
return 0
`

const defaultOTPMaxFailures = 5

// OTPStore keeps one pending one-time code per purpose and email.
type OTPStore struct {
	rdb         *redis.Client
	ttl         time.Duration
	maxFailures int
	consume     *redis.Script
}

func NewOTPStore(rdb *redis.Client, ttl time.Duration, maxFailures int) *OTPStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxFailures <= 0 {
		maxFailures = defaultOTPMaxFailures
	}

	return &OTPStore{
		rdb:         rdb,
		ttl:         ttl,
		maxFailures: maxFailures,
		consume:     redis.NewScript(luaConsumeOTP),
	}
}

// Save stores code, replacing any pending code for the same purpose and email
// and clearing its failure count.
func (s *OTPStore) Save(ctx context.Context, purpose, email, code string) error {
	const op = "redis.OTPStore.Save"

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisx.KeyOTP(purpose, email), code, s.ttl)
		pipe.Del(ctx, redisx.KeyOTPFailures(purpose, email))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Consume reports whether code matches the pending one and, if so, deletes it.
// An expired code behaves like a missing one. After maxFailures wrong guesses
// the pending code is deleted and a new one has to be requested.
func (s *OTPStore) Consume(ctx context.Context, purpose, email, code string) (bool, error) {
	const op = "redis.OTPStore.Consume"

	keys := []string{redisx.KeyOTP(purpose, email), redisx.KeyOTPFailures(purpose, email)}

	n, err := s.consume.Run(ctx, s.rdb, keys, code, s.maxFailures).Int()
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return n == 1, nil
}
