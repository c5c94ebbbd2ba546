package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisDeduper(client), mr
}

func TestRedisDeduper_SeenAfterRemember(t *testing.T) {
	d, _ := setupTestRedis(t)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Remember(ctx, "evt_1"))
	require.NoError(t, d.Remember(ctx, "evt_1"))

	seen, err = d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDeduper_TTL(t *testing.T) {
	d, mr := setupTestRedis(t)

	require.NoError(t, d.Remember(context.Background(), "evt_ttl"))
	assert.Equal(t, 72*time.Hour, mr.TTL(eventKey("evt_ttl")))

	mr.FastForward(73 * time.Hour)
	seen, err := d.Seen(context.Background(), "evt_ttl")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDeduper_ServerDown(t *testing.T) {
	d, mr := setupTestRedis(t)
	mr.Close()

	_, err := d.Seen(context.Background(), "evt_1")
	assert.ErrorContains(t, err, "redis exists failed")
	assert.ErrorContains(t, d.Remember(context.Background(), "evt_1"), "redis setnx failed")
}

func TestEventKey_Format(t *testing.T) {
	assert.Equal(t, "webhook:event:evt_abc", eventKey("evt_abc"))
}
