// README: Snapshot cache tier backed by Redis (JSON values, reader-side freshness).
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares snapshots across API instances. The Redis expiry only
// collects long-dead keys; freshness is judged from Entry.StoredAt.
type RedisCache struct {
	redis  *redis.Client
	expiry time.Duration
}

func NewRedisCache(client *redis.Client, expiry time.Duration) *RedisCache {
	return &RedisCache{redis: client, expiry: expiry}
}

func (c *RedisCache) Get(ctx context.Context, key Key) (Entry, bool, error) {
	raw, err := c.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key Key, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key.String(), raw, c.expiry).Err()
}
