package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitWindow is the counting window for message sends
	rateLimitWindow = 60 * time.Second
	// rateLimitMax is the number of messages a user may send per window
	rateLimitMax = 30
)

// CounterStore is the slice of redis used for rate limiting; *redis.Client
// satisfies it and tests fake it.
type CounterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimitService gates per-user message frequency with a reset-on-expiry
// counter (an approximation of a sliding window).
type RateLimitService interface {
	Allow(ctx context.Context, userID uint) bool
}

type rateLimitService struct {
	store CounterStore
}

func NewRateLimitService(store CounterStore) RateLimitService {
	return &rateLimitService{store: store}
}

// Allow counts the attempt and reports whether the user is under the limit.
// When the store is unreachable it fails open: blocking legitimate traffic
// during a cache outage is worse than letting a burst through. Deliberate
// availability-over-strictness trade-off.
func (r *rateLimitService) Allow(ctx context.Context, userID uint) bool {
	key := fmt.Sprintf("ratelimit:user:%d", userID)

	count, err := r.store.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("rate limit store error for user %d, allowing: %v", userID, err)
		return true
	}
	if count == 1 {
		if err := r.store.Expire(ctx, key, rateLimitWindow).Err(); err != nil {
			log.Printf("rate limit expire error for user %d: %v", userID, err)
		}
	}
	return count <= rateLimitMax
}
