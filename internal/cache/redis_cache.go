package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dukapos/backend/internal/domain"
)

type RedisAdviceCache struct {
	client *redis.Client
}

func NewRedisAdviceCache(addr string, password string, db int) *RedisAdviceCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisAdviceCache{client: client}
}

func (c *RedisAdviceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAdviceCache) Close() error {
	return c.client.Close()
}

func (c *RedisAdviceCache) Get(ctx context.Context, key string) ([]domain.RestockAdvice, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var advice []domain.RestockAdvice
	if err := json.Unmarshal([]byte(val), &advice); err != nil {
		return nil, false, err
	}
	return advice, true, nil
}

func (c *RedisAdviceCache) Set(ctx context.Context, key string, value []domain.RestockAdvice, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisAdviceCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
