package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func statusKey(id string) string {
	return fmt.Sprintf("wa:conn:%s:status", id)
}

func (c *RedisCache) SetStatus(ctx context.Context, id string, entry Entry) error {
	entry.UpdatedAt = entry.UpdatedAt.UTC()

	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, statusKey(id), b, c.ttl).Err()
}

func (c *RedisCache) GetStatus(ctx context.Context, id string) (Entry, bool, error) {
	b, err := c.rdb.Get(ctx, statusKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}

	var entry Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, statusKey(id)).Err()
}
