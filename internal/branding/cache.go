package branding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the lifetime of a cached branding entry.
const DefaultTTL = 5 * time.Minute

// Loader reads a shop's branding from the source of truth.
type Loader func(ctx context.Context, shop string) (Branding, error)

// Cache serves branding per shop for a bounded time, loading misses through
// its Loader. Implementations treat backend failures as misses.
type Cache interface {
	Get(ctx context.Context, shop string) (Branding, error)
	Set(ctx context.Context, shop string, b Branding)
	Invalidate(ctx context.Context, shop string)
	TTL() time.Duration
}

// MemoryCache is a Cache local to the process.
type MemoryCache struct {
	entries *cache.Cache[string, Branding]
	ttl     time.Duration
}

// NewMemoryCache returns an empty MemoryCache loading misses with load. A
// non-positive ttl means DefaultTTL.
func NewMemoryCache(logger *slog.Logger, ttl time.Duration, load Loader) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	// cartridge's cache fetches without a request context.
	fetch := func(shop string) (Branding, error) {
		return load(context.Background(), shop)
	}
	return &MemoryCache{
		entries: cache.NewCache[string, Branding](logger, ttl, fetch),
		ttl:     ttl,
	}
}

// Get returns the cached branding, loading it when missing or expired. A
// failed reload serves the expired entry when there is one.
func (c *MemoryCache) Get(_ context.Context, shop string) (Branding, error) {
	return c.entries.Get(shop)
}

func (c *MemoryCache) Set(_ context.Context, shop string, b Branding) {
	c.entries.Set(shop, b)
}

func (c *MemoryCache) Invalidate(_ context.Context, shop string) {
	c.entries.Remove(shop)
}

func (c *MemoryCache) TTL() time.Duration { return c.ttl }

// keyPrefix namespaces branding keys in Redis.
const keyPrefix = "stayboost:branding"

// RedisCache is a Cache shared by every instance through Redis. Values are
// stored as JSON with the TTL as expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	load   Loader
	logger *slog.Logger
}

// NewRedisCache connects to the Redis server at url (redis://...) and
// verifies the connection.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration, load Loader, logger *slog.Logger) (*RedisCache, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url cannot be empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, ttl, load, logger), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration, load Loader, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, load: load, logger: logger}
}

func redisKey(shop string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, shop)
}

// Get returns the cached branding or loads and stores it. Redis errors fall
// through to the loader.
func (c *RedisCache) Get(ctx context.Context, shop string) (Branding, error) {
	if b, ok := c.lookup(ctx, shop); ok {
		return b, nil
	}
	b, err := c.load(ctx, shop)
	if err != nil {
		return Branding{}, err
	}
	c.Set(ctx, shop, b)
	return b, nil
}

func (c *RedisCache) lookup(ctx context.Context, shop string) (Branding, bool) {
	val, err := c.client.Get(ctx, redisKey(shop)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Branding cache read failed", slog.String("shop", shop), slog.Any("error", err))
		}
		return Branding{}, false
	}

	var b Branding
	if err := json.Unmarshal(val, &b); err != nil {
		c.logger.Warn("Discarding unreadable branding cache entry", slog.String("shop", shop), slog.Any("error", err))
		return Branding{}, false
	}
	return b, true
}

func (c *RedisCache) Set(ctx context.Context, shop string, b Branding) {
	data, err := json.Marshal(b)
	if err != nil {
		c.logger.Warn("Failed to encode branding", slog.String("shop", shop), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, redisKey(shop), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Branding cache write failed", slog.String("shop", shop), slog.Any("error", err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, shop string) {
	if err := c.client.Del(ctx, redisKey(shop)).Err(); err != nil {
		c.logger.Warn("Branding cache invalidation failed", slog.String("shop", shop), slog.Any("error", err))
	}
}

func (c *RedisCache) TTL() time.Duration { return c.ttl }

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NewCache returns a RedisCache when redisURL is set and a MemoryCache
// otherwise. Both load misses with load.
func NewCache(ctx context.Context, redisURL string, ttl time.Duration, load Loader, logger *slog.Logger) (Cache, error) {
	if redisURL == "" {
		return NewMemoryCache(logger, ttl, load), nil
	}
	return NewRedisCache(ctx, redisURL, ttl, load, logger)
}
