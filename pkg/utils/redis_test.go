package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisHelpers_RejectNilClient(t *testing.T) {
	ctx := context.Background()

	_, err := TakeSlot(ctx, nil, "k", 1, time.Second)
	assert.ErrorIs(t, err, errNilRedis)
	assert.ErrorIs(t, GiveSlot(ctx, nil, "k"), errNilRedis)

	_, err = ClaimOnce(ctx, nil, "k", time.Second)
	assert.ErrorIs(t, err, errNilRedis)
	assert.ErrorIs(t, ReleaseClaim(ctx, nil, "k"), errNilRedis)
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	_, err := OpenRedis(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379", PoolSize: 5}.withDefaults()
	assert.Equal(t, 5, c.PoolSize)
	assert.Equal(t, 2*time.Second, c.OpTimeout)
	assert.Equal(t, 2*time.Second, c.PingTimeout)
}
