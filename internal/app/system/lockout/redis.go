package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "divehub:lockout:"

// failScript returns {locked, lock_ms, attempts_remaining}.
var failScript = redis.NewScript(`
local locked = redis.call("PTTL", KEYS[2])
if locked > 0 then
  return {1, locked, 0}
end

local max = tonumber(ARGV[1])
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
end

if n >= max then
  redis.call("SET", KEYS[2], "1", "PX", ARGV[2])
  redis.call("DEL", KEYS[1])
  return {1, tonumber(ARGV[2]), 0}
end
return {0, 0, max - n}
`)

// Redis is a Tracker shared by every instance pointed at the same server.
type Redis struct {
	client *redis.Client
	policy Policy
	prefix string
}

// NewRedis returns a Redis-backed Tracker. An empty prefix uses the default.
func NewRedis(client *redis.Client, p Policy, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, policy: p.withDefaults(), prefix: prefix}
}

func (r *Redis) keys(key string) (fails, lock string) {
	return r.prefix + "fails:" + key, r.prefix + "lock:" + key
}

func (r *Redis) Check(ctx context.Context, key string) (State, error) {
	failKey, lockKey := r.keys(key)

	ttl, err := r.client.PTTL(ctx, lockKey).Result()
	if err != nil {
		return State{}, fmt.Errorf("lockout check: %w", err)
	}
	if ttl > 0 {
		return State{Locked: true, RetryAfter: ttl}, nil
	}

	n, err := r.client.Get(ctx, failKey).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, fmt.Errorf("lockout check: %w", err)
	}
	return State{AttemptsRemaining: r.policy.MaxFailures - n}, nil
}

func (r *Redis) Fail(ctx context.Context, key string) (State, error) {
	failKey, lockKey := r.keys(key)
	lockMS := r.policy.Lockout.Milliseconds()
	windowMS := r.policy.Window.Milliseconds()

	res, err := failScript.Run(ctx, r.client, []string{failKey, lockKey}, r.policy.MaxFailures, lockMS, windowMS).Result()
	if err != nil {
		return State{}, fmt.Errorf("lockout fail: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return State{}, fmt.Errorf("lockout fail: unexpected redis response")
	}
	ints := make([]int64, 3)
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return State{}, fmt.Errorf("lockout fail: unexpected redis response")
		}
		ints[i] = n
	}

	if ints[0] == 1 {
		return State{Locked: true, RetryAfter: time.Duration(ints[1]) * time.Millisecond}, nil
	}
	return State{AttemptsRemaining: int(ints[2])}, nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	failKey, _ := r.keys(key)
	if err := r.client.Del(ctx, failKey).Err(); err != nil {
		return fmt.Errorf("lockout reset: %w", err)
	}
	return nil
}
