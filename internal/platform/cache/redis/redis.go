// Package redis keeps rate-limit windows in Redis or Valkey, so limits are
// shared by every instance pointing at the same server.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/cache"
)

func init() {
	cache.RegisterDriver("redis", func(config map[string]any) (cache.Counter, error) {
		cfg, err := decodeConfig(config)
		if err != nil {
			return nil, err
		}
		return New(cfg)
	})
}

// Config holds Redis connection configuration.
type Config struct {
	Addr         string        // Redis address (host:port)
	Password     string        // Optional password
	DB           int           // Database number
	KeyPrefix    string        // Prepended to every key
	DialTimeout  time.Duration // Connection timeout
	ReadTimeout  time.Duration // Read timeout
	WriteTimeout time.Duration // Write timeout
	PoolSize     int           // Connection pool size
}

// DefaultConfig returns sensible defaults for Redis connection.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "podinbox:",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// fileConfig is the [cache.drivers.redis] table.
type fileConfig struct {
	Addr          string  `mapstructure:"addr"`
	Password      string  `mapstructure:"password"`
	DB            int     `mapstructure:"db"`
	KeyPrefix     *string `mapstructure:"key_prefix"`
	DialTimeoutMS int     `mapstructure:"dial_timeout_ms"`
	PoolSize      int     `mapstructure:"pool_size"`
}

func decodeConfig(raw map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	if raw == nil {
		return cfg, nil
	}

	var fc fileConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &fc,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode redis config: %w", err)
	}

	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	cfg.Password = fc.Password
	cfg.DB = fc.DB
	if fc.KeyPrefix != nil {
		cfg.KeyPrefix = *fc.KeyPrefix
	}
	if fc.DialTimeoutMS > 0 {
		cfg.DialTimeout = time.Duration(fc.DialTimeoutMS) * time.Millisecond
	}
	if fc.PoolSize > 0 {
		cfg.PoolSize = fc.PoolSize
	}
	return cfg, nil
}

// incrScript increments and starts the window on first use. A key left
// without a TTL (PTTL < 0) gets one, so a counter can never live forever.
var incrScript = goredis.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  ttl = tonumber(ARGV[2])
end
return {v, ttl}
`)

// Counter is a go-redis backed counter store.
type Counter struct {
	client *goredis.Client
	prefix string
}

// New connects to Redis and pings it. It fails fast when the server is unreachable.
func New(cfg *Config) (*Counter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis health check %s: %w", cfg.Addr, err)
	}

	return &Counter{client: client, prefix: cfg.KeyPrefix}, nil
}

func (c *Counter) key(k string) string {
	return c.prefix + k
}

// Increment adds delta to the window for key and returns the new count and reset time.
func (c *Counter) Increment(ctx context.Context, key string, delta int64, window time.Duration) (int64, time.Time, error) {
	if window <= 0 {
		window = cache.DefaultWindow
	}
	res, err := incrScript.Run(ctx, c.client, []string{c.key(key)}, delta, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis increment: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("redis increment: unexpected reply %v", res)
	}
	return res[0], time.Now().Add(time.Duration(res[1]) * time.Millisecond), nil
}

// Close releases the connection pool.
func (c *Counter) Close() error {
	return c.client.Close()
}

var _ cache.Counter = (*Counter)(nil)
