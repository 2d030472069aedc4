package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &domain.Product{ID: 1, Name: "Mug"}))
	p, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Name)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	c.sweep()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &domain.Product{ID: 1, Name: "Mug"}))
	p, err := c.Get(ctx, 1)
	require.NoError(t, err)
	p.Name = "changed"

	again, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Mug", again.Name)
}

func TestMemoryCacheDeleteAndClose(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &domain.Product{ID: 1}))
	require.NoError(t, c.Delete(ctx, 1))
	_, err := c.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, "storefront:", 10*time.Minute), mr
}

func TestRedisCacheGetMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)
	_, err := cache.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheSetGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.Product{ID: 7, Name: "Lamp", Category: &domain.Category{Name: "Living"}}))

	key := "storefront:product:7"
	require.True(t, mr.Exists(key))
	ttl := mr.TTL(key)
	assert.GreaterOrEqual(t, ttl, 10*time.Minute)
	assert.LessOrEqual(t, ttl, 12*time.Minute)

	p, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", p.Name)
	assert.Equal(t, "Living", p.CategoryLabel())
}

func TestRedisCacheCorruptEntry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("storefront:product:3", "{not json"))

	_, err := cache.Get(context.Background(), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheDelete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	data, _ := json.Marshal(domain.Product{ID: 3})
	require.NoError(t, mr.Set("storefront:product:3", string(data)))

	require.NoError(t, cache.Delete(context.Background(), 3))
	assert.False(t, mr.Exists("storefront:product:3"))
}

func TestRedisCacheExpires(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, &domain.Product{ID: 1}))

	mr.FastForward(13 * time.Minute)

	_, err := cache.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)
}
