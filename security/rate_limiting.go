package security

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// ScanRateLimit throttles the verify endpoint per session (falling back to
// the caller IP), so a stuck station cannot flood the store with lookups.
func (r *RateLimiter) ScanRateLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		key := e.Request.PathValue("sessionId")
		if key == "" {
			key = e.RealIP()
		}

		ok, err := r.Allow(e.Request.Context(), fmt.Sprintf("scan:rl:%s", key))
		if err != nil {
			// Redis trouble must not block the door; let the scan through.
			return e.Next()
		}
		if !ok {
			return apis.NewApiError(http.StatusTooManyRequests,
				"Rate limit exceeded. Please try again later.", nil)
		}

		return e.Next()
	}
}

// Allow counts one request against the key's window.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}

	return count <= int64(r.limit), nil
}
