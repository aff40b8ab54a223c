// Package ratelimit guards the endpoints and batches that spend classification quota.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// SlidingWindowLimiter - 요청 속도 제한 (Redis, 없으면 로컬)
// =============================================================================

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest > 0 then
		return -(oldest[2] + window_ms - now)
	end
	return 0
`)

// SlidingWindowLimiter allows limit requests per key within window.
type SlidingWindowLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	local map[string][]time.Time
}

func NewSlidingWindowLimiter(redisClient *redis.Client, limit int, window time.Duration) *SlidingWindowLimiter {
	if limit < 1 {
		limit = 1
	}
	return &SlidingWindowLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		now:    time.Now,
		local:  make(map[string][]time.Time),
	}
}

func (l *SlidingWindowLimiter) Limit() int { return l.limit }

// Allow reports whether the request may proceed and, if not, how long to wait.
// Redis errors fall back to the in-process window.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	now := l.now()
	if l.redis != nil {
		result, err := slidingWindowScript.Run(ctx, l.redis, []string{"ratelimit:" + key},
			now.UnixMilli(),
			now.Add(-l.window).UnixMilli(),
			l.limit,
			l.window.Milliseconds(),
		).Int64()
		if err == nil {
			switch {
			case result == 1:
				return true, 0
			case result < 0:
				return false, time.Duration(-result) * time.Millisecond
			default:
				return false, l.window
			}
		}
	}
	return l.allowLocal(key, now)
}

func (l *SlidingWindowLimiter) allowLocal(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	hits := l.local[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.local[key] = kept
		return false, kept[0].Add(l.window).Sub(now)
	}
	l.local[key] = append(kept, now)
	return true, 0
}

// =============================================================================
// BatchLock - 메일함별 배치 중복 실행 방지
// =============================================================================

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// BatchLock hands out one lease per key. With Redis the lease is shared across
// processes; without it only this process is covered.
type BatchLock struct {
	redis *redis.Client
	now   func() time.Time

	mu    sync.Mutex
	local map[string]time.Time
}

func NewBatchLock(redisClient *redis.Client) *BatchLock {
	return &BatchLock{
		redis: redisClient,
		now:   time.Now,
		local: make(map[string]time.Time),
	}
}

// TryLock takes the lease for key. ok is false when someone else holds it.
// The returned release is safe to call once the lease has expired.
func (b *BatchLock) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	if b.redis != nil {
		redisKey := "batchlock:" + key
		token := uuid.NewString()
		ok, err := b.redis.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("failed to take batch lock: %w", err)
		}
		if !ok {
			return nil, false, nil
		}
		return func() {
			releaseScript.Run(context.WithoutCancel(ctx), b.redis, []string{redisKey}, token)
		}, true, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if until, held := b.local[key]; held && now.Before(until) {
		return nil, false, nil
	}
	until := now.Add(ttl)
	b.local[key] = until
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.local[key].Equal(until) {
			delete(b.local, key)
		}
	}, true, nil
}
