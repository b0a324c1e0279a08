// Package redis provides a Redis cache driver. Unlike the memory driver its
// sequences are shared, so several replicas can sign registry requests with
// one secret without their nonces colliding.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/cache"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/cfg"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
)

// Config holds Redis connection configuration from [cache.drivers.redis].
type Config struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "confsync:"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 15 * time.Minute
	}
}

func init() {
	cache.RegisterDriver("redis", func(config map[string]any, logger *slog.Logger) (cache.Store, error) {
		var c Config
		if err := cfg.Decode(config, &c); err != nil {
			return nil, err
		}
		return New(context.Background(), &c, logger)
	})
}

// incrementScript sets the TTL only when the counter was just created, so a
// window does not slide with every hit.
var incrementScript = goredis.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if tonumber(v) == tonumber(ARGV[1]) then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return v
`)

// advanceScript keeps the stored value as a string and only does integer
// arithmetic through INCR, so large nonces never pass through a float format.
var advanceScript = goredis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return redis.call('INCR', KEYS[1])
end
redis.call('SET', KEYS[1], ARGV[1])
return tonumber(ARGV[1])
`)

// Cache is a Redis-backed cache.Store.
type Cache struct {
	client     *goredis.Client
	prefix     string
	defaultTTL time.Duration
	logger     *slog.Logger
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, c *Config, logger *slog.Logger) (*Cache, error) {
	if c == nil {
		c = &Config{}
	}
	c.ApplyDefaults()
	logger = logutil.NoopIfNil(logger)

	client := goredis.NewClient(&goredis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", c.Addr, err)
	}

	logger.Info("cache connected", "driver", "redis", "addr", c.Addr, "db", c.DB)

	return &Cache{
		client:     client,
		prefix:     c.KeyPrefix,
		defaultTTL: c.DefaultTTL,
		logger:     logger,
	}, nil
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Exists checks if a key exists. Redis expires keys itself.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Increment adds delta to a counter and returns the new value.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	v, err := incrementScript.Run(ctx, c.client, []string{c.key(key)}, delta, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis increment: %w", err)
	}
	return v, nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Get(ctx, c.key(key)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get count: %w", err)
	}
	return v, nil
}

// Reset sets a counter to 0.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// Advance stores and returns max(candidate, current+1) atomically.
func (c *Cache) Advance(ctx context.Context, key string, candidate int64) (int64, error) {
	v, err := advanceScript.Run(ctx, c.client, []string{c.key(key)}, candidate).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis advance: %w", err)
	}
	return v, nil
}

// Close closes the client connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

var _ cache.Store = (*Cache)(nil)
