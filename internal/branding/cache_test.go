package branding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// countingLoader returns Default for every shop and counts calls. Setting
// fail makes later calls return an error.
type countingLoader struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (l *countingLoader) load(_ context.Context, shop string) (Branding, error) {
	l.calls.Add(1)
	if l.fail.Load() {
		return Branding{}, errors.New("database is down")
	}
	return Default(shop), nil
}

func TestMemoryCacheLoadsOnMissAndExpiry(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache := NewMemoryCache(testLogger, 50*time.Millisecond, loader.load)

	got, err := cache.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, Default(shop), got)
	assert.Equal(t, int32(1), loader.calls.Load())

	_, err = cache.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load(), "fresh entry is served from memory")

	time.Sleep(60 * time.Millisecond)
	_, err = cache.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load(), "expired entry is reloaded")
}

func TestMemoryCacheServesStaleOnLoadFailure(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache := NewMemoryCache(testLogger, 20*time.Millisecond, loader.load)

	cache.Set(ctx, shop, Branding{Shop: shop, PrimaryColor: "#123456"})
	loader.fail.Store(true)
	time.Sleep(30 * time.Millisecond)

	got, err := cache.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, "#123456", got.PrimaryColor)

	_, err = cache.Get(ctx, "unknown.myshopify.com")
	assert.Error(t, err, "no stale entry to fall back to")
}

func TestMemoryCacheSetAndInvalidate(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache := NewMemoryCache(testLogger, 0, loader.load)
	assert.Equal(t, DefaultTTL, cache.TTL())

	cache.Set(ctx, "a.myshopify.com", Branding{Shop: "a.myshopify.com", PrimaryColor: "#ff0000"})
	cache.Set(ctx, "b.myshopify.com", Branding{Shop: "b.myshopify.com", PrimaryColor: "#00ff00"})

	got, err := cache.Get(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", got.PrimaryColor)
	assert.Zero(t, loader.calls.Load())

	cache.Invalidate(ctx, "a.myshopify.com")
	got, err = cache.Get(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrimaryColor, got.PrimaryColor)
	assert.Equal(t, int32(1), loader.calls.Load())

	got, err = cache.Get(ctx, "b.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", got.PrimaryColor)
}

func TestRedisCacheFailuresFallThroughToLoader(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	loader := &countingLoader{}
	cache := NewRedisCacheWithClient(client, time.Minute, loader.load, testLogger)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		cache.Set(ctx, shop, Default(shop))
		cache.Invalidate(ctx, shop)
	})
	got, err := cache.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, Default(shop), got)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, time.Minute, cache.TTL())

	loader.fail.Store(true)
	_, err = cache.Get(ctx, shop)
	assert.Error(t, err)
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}

	cache, err := NewCache(ctx, "", time.Minute, loader.load, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, cache)

	_, err = NewCache(ctx, "not a url", time.Minute, loader.load, testLogger)
	assert.Error(t, err)

	_, err = NewRedisCache(ctx, "", time.Minute, loader.load, testLogger)
	assert.Error(t, err)
}
