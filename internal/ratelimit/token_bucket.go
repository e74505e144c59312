// Package ratelimit throttles mutating API calls with a token bucket shared
// through Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "mediaflow:ratelimit"

// takeScript refills the bucket for the elapsed time, then takes cost tokens
// if enough are left. It replies {allowed, remaining, retry_after_ms}.
var takeScript = redis.NewScript(`
local cap  = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now  = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "level", "at")
local level = tonumber(state[1]) or cap
local at = tonumber(state[2]) or now

level = math.min(cap, level + math.max(0, now - at) * rate)

local ok, wait = 0, 0
if level >= cost then
  level = level - cost
  ok = 1
else
  wait = math.ceil((cost - level) / rate)
end

redis.call("HSET", KEYS[1], "level", level, "at", now)
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return {ok, math.floor(level), wait}
`)

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RedisTokenBucket keeps one bucket per subject in a Redis hash so every api
// replica draws from the same budget.
type RedisTokenBucket struct {
	client    redis.UniversalClient
	capacity  int64
	perMilli  float64
	idleTTL   time.Duration
	keyPrefix string
	now       func() time.Time
}

// NewRedisTokenBucket allows capacity requests per window for each subject,
// refilling continuously. An empty keyPrefix selects DefaultKeyPrefix.
func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	switch {
	case client == nil:
		return nil, errors.New("redis client is required")
	case capacity <= 0:
		return nil, errors.New("capacity must be positive")
	case window <= 0:
		return nil, errors.New("window must be positive")
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = DefaultKeyPrefix
	}

	return &RedisTokenBucket{
		client:    client,
		capacity:  int64(capacity),
		perMilli:  float64(capacity) / float64(max(window.Milliseconds(), 1)),
		idleTTL:   2 * window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}, nil
}

// Capacity is the bucket size, reported as the limit header.
func (l *RedisTokenBucket) Capacity() int64 {
	return l.capacity
}

// Allow takes one token from subject's bucket. Blank subjects share the
// "anonymous" bucket.
func (l *RedisTokenBucket) Allow(ctx context.Context, subject string) (Decision, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}

	reply, err := takeScript.Run(ctx, l.client,
		[]string{l.keyPrefix + ":" + subject},
		l.capacity,
		l.perMilli,
		l.now().UnixMilli(),
		1,
		l.idleTTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("take token for %s: %w", subject, err)
	}
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("take token for %s: unexpected reply %v", subject, reply)
	}

	return Decision{
		Allowed:    reply[0] == 1,
		Remaining:  reply[1],
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}
