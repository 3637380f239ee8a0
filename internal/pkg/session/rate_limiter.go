// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every node through Redis.
type RateLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, max int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, max: max, window: window}
}

// Allow counts one attempt for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := fmt.Sprintf("ratelimit:%s", key)

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiration on first attempt
	if count == 1 {
		r.client.Expire(ctx, k, r.window)
	}

	return count <= r.max, nil
}
