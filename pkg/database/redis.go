package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/northstar-hq/northstar-engine/pkg/config"
)

// NewRedisClient connects to Redis for the org summary cache. Redis is
// optional: with no host configured it returns (nil, nil) and the dashboard
// recomputes the rollup on every request.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return client, nil
}
