package stream

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// goRedisClient adapts *redis.Client to the RedisClient interface.
type goRedisClient struct {
	c *redis.Client
}

// NewGoRedisClient connects a go-redis client suitable for the RedisWriter.
func NewGoRedisClient(addr, password string, db int) RedisClient {
	return &goRedisClient{c: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (g *goRedisClient) HSet(ctx context.Context, key string, values ...any) error {
	return g.c.HSet(ctx, key, values...).Err()
}

func (g *goRedisClient) Del(ctx context.Context, keys ...string) error {
	return g.c.Del(ctx, keys...).Err()
}
