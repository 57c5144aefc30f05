package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/contractflow/proposals_backend/config"
)

// RateLimitCounter is the small slice of Redis the limiter needs.
// Abstracted so tests can run against an in-memory counter.
type RateLimitCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	PExpire(ctx context.Context, key string, ttl time.Duration) error
}

type redisCounter struct {
	client *redis.Client
}

func (r redisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r redisCounter) PExpire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.PExpire(ctx, key, ttl).Err()
}

// RateLimitResult reports a single Allow decision.
// Remaining never goes below zero even when requests keep arriving
// after the window is exhausted.
type RateLimitResult struct {
	Ok         bool
	Limit      int64
	Remaining  int64
	ResetAfter time.Duration
}

// RateLimiter is a fixed-window limiter over a shared counter.
// Each window gets its own key; the first hit in a window sets the
// expiry so abandoned windows clean themselves up.
type RateLimiter struct {
	counter RateLimitCounter
	limit   int64
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(counter RateLimitCounter, limit int64, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{counter: counter, limit: limit, window: window, now: time.Now}
}

// NewRedisRateLimiter wires the limiter to the shared Redis client.
// Returns nil if Redis has not been connected yet.
func NewRedisRateLimiter(limit int64, window time.Duration) *RateLimiter {
	client := config.GetRedisDB()
	if client == nil {
		return nil
	}
	return NewRateLimiter(redisCounter{client: client}, limit, window)
}

// Allow records one hit against the key's current window and reports
// whether it fits under the limit. The counter increments even for
// denied requests; only the post-increment count is compared.
//
// Counter backend failures fail open: an unavailable Redis should not
// take request serving down with it.
func (rl *RateLimiter) Allow(ctx context.Context, key string) RateLimitResult {
	now := rl.now()
	windowIndex := now.UnixMilli() / rl.window.Milliseconds()
	bucketKey := fmt.Sprintf("ratelimit:%s:%d", key, windowIndex)

	count, err := rl.counter.Incr(ctx, bucketKey)
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field": "RateLimiter.Allow",
			"key":   key,
		}).Warn("rate limit counter unavailable, allowing request: " + err.Error())
		return RateLimitResult{Ok: true, Limit: rl.limit, Remaining: rl.limit, ResetAfter: rl.window}
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := rl.counter.PExpire(ctx, bucketKey, rl.window); err != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"field": "RateLimiter.Allow",
				"key":   key,
			}).Warn("rate limit expiry not set: " + err.Error())
		}
	}

	windowStart := windowIndex * rl.window.Milliseconds()
	resetAfter := time.Duration(windowStart+rl.window.Milliseconds()-now.UnixMilli()) * time.Millisecond

	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Ok:         count <= rl.limit,
		Limit:      rl.limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}
}
