// Package memory keeps rate-limit windows in process memory. Limits are per
// instance with this driver; use redis to share them.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/cache"
)

func init() {
	cache.RegisterDriver("memory", func(raw map[string]any) (cache.Counter, error) {
		cfg := driverConfig{DefaultWindowSeconds: int(cache.DefaultWindow / time.Second), SweepIntervalSeconds: 300}
		if raw != nil {
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           &cfg,
				WeaklyTypedInput: true,
				ErrorUnused:      true,
			})
			if err != nil {
				return nil, err
			}
			if err := dec.Decode(raw); err != nil {
				return nil, fmt.Errorf("decode memory config: %w", err)
			}
		}
		if cfg.DefaultWindowSeconds <= 0 {
			return nil, fmt.Errorf("default_window_seconds must be positive")
		}
		return New(
			time.Duration(cfg.DefaultWindowSeconds)*time.Second,
			time.Duration(cfg.SweepIntervalSeconds)*time.Second,
		), nil
	})
}

// driverConfig is the [cache.drivers.memory] table.
type driverConfig struct {
	DefaultWindowSeconds int `mapstructure:"default_window_seconds"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

type window struct {
	count   int64
	resetAt time.Time
}

// Counter holds fixed windows keyed by rate-limit key.
type Counter struct {
	mu            sync.Mutex
	windows       map[string]*window
	defaultWindow time.Duration
	now           func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a counter store. Closed windows are swept every sweepInterval;
// zero disables the sweeper and windows are only replaced on their next use.
func New(defaultWindow, sweepInterval time.Duration) *Counter {
	if defaultWindow <= 0 {
		defaultWindow = cache.DefaultWindow
	}
	c := &Counter{
		windows:       make(map[string]*window),
		defaultWindow: defaultWindow,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Increment adds delta to the open window for key, opening one if needed.
func (c *Counter) Increment(_ context.Context, key string, delta int64, length time.Duration) (int64, time.Time, error) {
	if length <= 0 {
		length = c.defaultWindow
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(length)}
		c.windows[key] = w
	}
	w.count += delta
	return w.count, w.resetAt, nil
}

// Len returns the number of stored windows, open or not yet swept.
func (c *Counter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

func (c *Counter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Counter) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
		}
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (c *Counter) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	return nil
}

var _ cache.Counter = (*Counter)(nil)
