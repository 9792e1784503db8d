package db

import (
	"context"
	"log"
	"time"

	"github.com/dormside/dormside/config"
	"github.com/redis/go-redis/v9"
)

// GetRedisClient connects the shared redis client used for rate limit
// counters, presence sets and the websocket pub/sub bridge. Failure to
// reach redis is not fatal: every consumer degrades gracefully.
func GetRedisClient(c *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis ping failed (continuing, realtime features degraded): %v", err)
	}
	return rdb
}
