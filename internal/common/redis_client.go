package common

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"schoolpoints/relay/internal/logging"
)

// NewRedisClient connects from REDIS_* env vars. Returns nil when no address
// is configured; callers treat a nil client as "cache disabled".
func NewRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		host := os.Getenv("REDIS_HOST")
		if host == "" {
			return nil
		}
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		addr = fmt.Sprintf("%s:%s", host, port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logging.Warn("redis unreachable, snapshot cache disabled", "addr", addr, "error", err)
		return nil
	}
	logging.Info("redis connected", "addr", addr)
	return client
}
