package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// fakeCounterStore counts in memory and can simulate an outage
type fakeCounterStore struct {
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Duration),
	}
}

func (f *fakeCounterStore) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.incrErr != nil {
		cmd.SetErr(f.incrErr)
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeCounterStore) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	f.expires[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func TestAllowUnderLimit(t *testing.T) {
	store := newFakeCounterStore()
	svc := NewRateLimitService(store)
	ctx := context.Background()

	for i := 0; i < rateLimitMax; i++ {
		assert.True(t, svc.Allow(ctx, 7), "message %d should be allowed", i+1)
	}
}

func TestAllowDeniesOverLimit(t *testing.T) {
	store := newFakeCounterStore()
	svc := NewRateLimitService(store)
	ctx := context.Background()

	for i := 0; i < rateLimitMax; i++ {
		svc.Allow(ctx, 7)
	}
	assert.False(t, svc.Allow(ctx, 7), "message %d should be denied", rateLimitMax+1)
}

func TestAllowSetsWindowOnFirstIncrement(t *testing.T) {
	store := newFakeCounterStore()
	svc := NewRateLimitService(store)
	ctx := context.Background()

	svc.Allow(ctx, 7)
	svc.Allow(ctx, 7)

	key := fmt.Sprintf("ratelimit:user:%d", 7)
	assert.Equal(t, rateLimitWindow, store.expires[key])
}

func TestAllowIsPerUser(t *testing.T) {
	store := newFakeCounterStore()
	svc := NewRateLimitService(store)
	ctx := context.Background()

	for i := 0; i < rateLimitMax; i++ {
		svc.Allow(ctx, 7)
	}
	assert.False(t, svc.Allow(ctx, 7))
	assert.True(t, svc.Allow(ctx, 8), "another user's counter must be independent")
}

func TestAllowFailsOpenOnStoreError(t *testing.T) {
	store := newFakeCounterStore()
	store.incrErr = errors.New("connection refused")
	svc := NewRateLimitService(store)

	assert.True(t, svc.Allow(context.Background(), 7))
}
