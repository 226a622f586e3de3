package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "biznesinfo:ai-lock:"

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// keyMissing is the PTTL reply for an absent key.
const keyMissing = time.Duration(-2)

// acquireAttempts bounds retries when a held key expires between SET and PTTL.
const acquireAttempts = 2

// redisClient is the part of *redis.Client the Redis locker runs on.
type redisClient interface {
	redis.Scripter
	SetArgs(ctx context.Context, key string, value interface{}, a redis.SetArgs) *redis.StatusCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisLocker keeps one key per user holding the owning request id.
type RedisLocker struct {
	settings
	client redisClient
}

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client *redis.Client, opts ...Option) *RedisLocker {
	return newRedisLocker(client, opts...)
}

func newRedisLocker(client redisClient, opts ...Option) *RedisLocker {
	return &RedisLocker{settings: newSettings(opts), client: client}
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

// Acquire writes the user key with SET NX GET, which either stores requestID or
// returns the current owner in one command. A held key that expires before its
// TTL is read is retried once.
func (l *RedisLocker) Acquire(ctx context.Context, userID, requestID string, ttlSeconds int) (Result, error) {
	now := l.now()
	ttl := l.ttl(ttlSeconds)
	key := redisKey(userID)

	var owner string
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		prev, err := l.client.SetArgs(ctx, key, requestID, redis.SetArgs{Mode: "NX", Get: true, TTL: ttl}).Result()
		if errors.Is(err, redis.Nil) {
			return acquired(now.Add(ttl)), nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("redis lock acquire: %w", err)
		}
		owner = prev

		remaining, err := l.client.PTTL(ctx, key).Result()
		if err != nil {
			return Result{}, fmt.Errorf("redis lock ttl: %w", err)
		}
		if remaining == keyMissing {
			continue
		}
		if remaining < 0 {
			remaining = 0
		}
		return busy(owner, now.Add(remaining), now), nil
	}
	return busy(owner, now.Add(time.Second), now), nil
}

// Extend refreshes the key TTL if requestID still owns it.
func (l *RedisLocker) Extend(ctx context.Context, userID, requestID string, ttlSeconds int) error {
	ms := l.ttl(ttlSeconds) / time.Millisecond
	if err := extendScript.Run(ctx, l.client, []string{redisKey(userID)}, requestID, int64(ms)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis lock extend: %w", err)
	}
	return nil
}

// Release deletes the key if requestID still owns it.
func (l *RedisLocker) Release(ctx context.Context, userID, requestID string) error {
	if err := releaseScript.Run(ctx, l.client, []string{redisKey(userID)}, requestID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
