//go:build integration

package containers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type Redis struct {
	URL    string
	Client *redis.Client
}

func startRedis(ctx context.Context) (*Redis, error) {
	c, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	url, err := c.ConnectionString(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return &Redis{URL: url, Client: redis.NewClient(opts)}, nil
}
