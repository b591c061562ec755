package webhooks

import (
	"context"
	"time"

	"voicedesk/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const dedupKeyScope = "webhook:vapi:"

// Deduper claims a webhook delivery once. Release undoes a claim so a
// redelivery of a failed event can be processed.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return utils.ClaimOnce(ctx, d.rdb, dedupKeyScope+key, d.ttl)
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	return utils.ReleaseClaim(ctx, d.rdb, dedupKeyScope+key)
}
