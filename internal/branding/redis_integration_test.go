//go:build integration

package branding

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with STAYBOOST_TEST_REDIS_URL=redis://localhost:6379/15 go test -tags integration
func TestRedisCacheRoundTrip(t *testing.T) {
	url := os.Getenv("STAYBOOST_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STAYBOOST_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	loader := &countingLoader{}
	cache, err := NewRedisCache(ctx, url, 2*time.Second, loader.load, testLogger)
	require.NoError(t, err)
	defer cache.Close()

	shop := "integration.myshopify.com"
	cache.Invalidate(ctx, shop)

	want := Branding{Shop: shop, PrimaryColor: "#ff0000", SecondaryColor: "#00ff00", FontFamily: "Inter"}
	cache.Set(ctx, shop, want)

	got, err := cache.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, want.PrimaryColor, got.PrimaryColor)
	assert.Equal(t, want.FontFamily, got.FontFamily)
	assert.Zero(t, loader.calls.Load())

	ttl, err := cache.client.TTL(ctx, redisKey(shop)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	cache.Invalidate(ctx, shop)
	got, err = cache.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrimaryColor, got.PrimaryColor)
	assert.Equal(t, int32(1), loader.calls.Load())
}
