// Package cache holds the counter store behind rate limiting. Discovery
// results are never cached here. Drivers register themselves from init();
// see the loader package.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Counter is a store of fixed-window request counters. Rate limit profiles
// share one Counter and separate their keys by scope.
type Counter interface {
	// Increment adds delta to key and returns the new count and the time the
	// window resets. The first increment opens a window of length window
	// (DefaultWindow when zero); later increments keep it.
	Increment(ctx context.Context, key string, delta int64, window time.Duration) (int64, time.Time, error)

	// Close releases resources.
	Close() error
}

// DefaultWindow applies when Increment gets a zero window.
const DefaultWindow = time.Minute

// DriverFactory builds a cache from its [cache.drivers.<name>] config map.
type DriverFactory func(config map[string]any) (Counter, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// RegisterDriver registers a cache driver by name.
func RegisterDriver(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// Drivers returns the sorted registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFromConfig builds the named driver with its entry from driverConfigs.
// An empty driver name selects "memory".
func NewFromConfig(driver string, driverConfigs map[string]any) (Counter, error) {
	if driver == "" {
		driver = "memory"
	}

	driversMu.RLock()
	factory, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cache driver %q (registered: %v)", driver, Drivers())
	}

	var cfg map[string]any
	if raw, ok := driverConfigs[driver]; ok {
		cfg, ok = raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cache.drivers.%s must be a table", driver)
		}
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("cache driver %s: %w", driver, err)
	}
	return c, nil
}
