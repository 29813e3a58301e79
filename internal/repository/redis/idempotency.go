package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IdemState is the outcome of claiming an Idempotency-Key.
type IdemState int

const (
	// IdemClaimed: the caller owns the key and must Complete or Abandon it.
	IdemClaimed IdemState = iota + 1
	// IdemInProgress: another request owns the key.
	IdemInProgress
	// IdemDone: a response was stored and should be replayed.
	IdemDone
)

// StoredResponse is what a finished request left behind for replays.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type Claim struct {
	State    IdemState
	Token    string
	Response StoredResponse
}

const (
	idemLockPrefix   = "LOCK:"
	idemResultPrefix = "RES:"
)

// claimScript sets the lock when the key is free and returns "". Otherwise
// it returns the current value so the caller can tell a lock from a result.
var claimScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
  return ""
end
local v = redis.call("GET", KEYS[1])
if v then
  return v
end
return ARGV[1]
`)

// completeScript stores the result only while the caller's lock is in place.
var completeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
  return 1
end
return 0
`)

var abandonScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyStore remembers the response of a request under its
// Idempotency-Key. A key holds either the lock of the request that runs it
// or the stored response. Only the lock owner can replace or drop the lock.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) Claim(ctx context.Context, key string, lockTTL time.Duration) (Claim, error) {
	const op = "redis.IdempotencyStore.Claim"

	token := uuid.NewString()

	v, err := claimScript.Run(ctx, s.rdb, []string{key}, idemLockPrefix+token, lockTTL.Milliseconds()).Text()
	if err != nil {
		return Claim{}, fmt.Errorf("%s:%w", op, err)
	}

	c, err := parseClaim(v, token)
	if err != nil {
		return Claim{}, fmt.Errorf("%s:%w", op, err)
	}
	return c, nil
}

// Complete stores resp for replays. It is a no-op when the lock expired and
// someone else took the key over.
func (s *IdempotencyStore) Complete(ctx context.Context, key, token string, resp StoredResponse) error {
	const op = "redis.IdempotencyStore.Complete"

	val, err := encodeResult(resp)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err = completeScript.Run(ctx, s.rdb, []string{key}, idemLockPrefix+token, val, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	return nil
}

// Abandon frees a claimed key so the request can be retried.
func (s *IdempotencyStore) Abandon(ctx context.Context, key, token string) error {
	const op = "redis.IdempotencyStore.Abandon"

	if err := abandonScript.Run(ctx, s.rdb, []string{key}, idemLockPrefix+token).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	return nil
}

func parseClaim(v, token string) (Claim, error) {
	switch {
	case v == "":
		return Claim{State: IdemClaimed, Token: token}, nil
	case strings.HasPrefix(v, idemResultPrefix):
		var resp StoredResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(v, idemResultPrefix)), &resp); err != nil {
			return Claim{}, fmt.Errorf("decode stored response: %w", err)
		}
		return Claim{State: IdemDone, Response: resp}, nil
	default:
		return Claim{State: IdemInProgress}, nil
	}
}

func encodeResult(resp StoredResponse) (string, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return idemResultPrefix + string(b), nil
}
