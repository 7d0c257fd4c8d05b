// Package deps provides shared dependencies for all services.
package deps

import (
	"sync"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/i18n"
	"github.com/MahdiBaghbani/podinbox-go/internal/components/inboxes"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/cache"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"
)

var (
	sharedDeps     *Deps
	sharedDepsOnce sync.Once
)

// Deps holds shared dependencies for all services.
// Services read it in their constructors; nothing mutates it after startup.
type Deps struct {
	// Discovery
	Aggregator *inboxes.Aggregator
	Catalog    *i18n.Bundle

	// Runs is nil when run recording is disabled.
	Runs store.RunStore

	// Metrics is nil when metrics.enabled is false.
	Metrics *metrics.Metrics

	// Config (for handlers that need config values)
	Config *config.Config

	// Counters backs the ratelimit interceptor.
	Counters cache.Counter

	// RealIP provides trusted-proxy-aware client IP extraction.
	// This is the single source of truth for client identity in logging and rate limiting.
	RealIP *realip.TrustedProxies
}

// SetDeps sets the shared dependencies. Must be called once at startup
// before any services are constructed.
func SetDeps(d *Deps) {
	sharedDepsOnce.Do(func() {
		sharedDeps = d
	})
}

// GetDeps returns the shared dependencies.
// Returns nil if SetDeps has not been called.
func GetDeps() *Deps {
	return sharedDeps
}

// ResetDeps is for testing only. Resets the singleton.
func ResetDeps() {
	sharedDeps = nil
	sharedDepsOnce = sync.Once{}
}
