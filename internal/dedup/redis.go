package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisSeenSet shares a SeenSet between bot instances. Keys are written with
// SET NX PX so expiry is handled by Redis.
type RedisSeenSet struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSeenSet wraps client. Keys are stored as prefix+key.
func NewRedisSeenSet(client *redis.Client, prefix string, ttl time.Duration) *RedisSeenSet {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSeenSet{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Add marks key as seen.
func (s *RedisSeenSet) Add(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().UnixMilli(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}
