package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventDeduper implements EventDeduper with SETNX keys that expire
// after ttl.
type RedisEventDeduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisEventDeduper(rdb *redis.Client, ttl time.Duration) *RedisEventDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventDeduper{rdb: rdb, ttl: ttl, prefix: "webhook:event:"}
}

func (d *RedisEventDeduper) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return d.rdb.SetNX(ctx, d.prefix+eventID, 1, d.ttl).Result()
}

func (d *RedisEventDeduper) Forget(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, d.prefix+eventID).Err()
}
