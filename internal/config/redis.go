package config

// This file defines a Redis client constructor. Redis backs the
// distributed rate limiter guarding the checkout and webhook routes.
// If connection fails during startup the function returns nil and
// callers degrade gracefully by disabling rate limiting.

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client using environment
// variables: REDIS_ADDR (host:port, default localhost:6379),
// REDIS_PASSWORD (optional) and REDIS_DB (default 0). The returned
// client may be nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	dbNum := 0
	if dbStr := envStr("REDIS_DB", ""); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       dbNum,
	})
	// Ping the server with a short timeout; return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}
