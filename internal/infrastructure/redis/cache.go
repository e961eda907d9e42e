package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultPrefix = "endpoint:"

// EndpointCache shares endpoint lookups between consumer instances. Redis
// failures degrade to cache misses.
type EndpointCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewClient parses a redis:// URL and checks the connection.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewEndpointCache(client *goredis.Client, ttl time.Duration, log *zap.Logger) *EndpointCache {
	return &EndpointCache{client: client, prefix: defaultPrefix, ttl: ttl, log: log}
}

func (c *EndpointCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("endpoint cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return v, true
}

func (c *EndpointCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		c.log.Warn("endpoint cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *EndpointCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.log.Warn("endpoint cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
