package campaigns

import (
	"context"
	"time"

	"voicedesk/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const (
	creationLimit    = 1
	creationSlotTTL  = 2 * time.Minute
	creationKeyScope = "campaigns:create:"
)

// RedisLimiter allows one in-flight campaign creation per tenant across all
// API instances. The slot TTL frees slots held by a crashed process.
type RedisLimiter struct {
	rdb *redis.Client
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter { return &RedisLimiter{rdb: rdb} }

func (l *RedisLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.TakeSlot(ctx, l.rdb, creationKeyScope+userID, creationLimit, creationSlotTTL)
}

func (l *RedisLimiter) Release(ctx context.Context, userID string) error {
	return utils.GiveSlot(ctx, l.rdb, creationKeyScope+userID)
}
