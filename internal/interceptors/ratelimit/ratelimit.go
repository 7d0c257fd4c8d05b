// Package ratelimit provides a fixed-window rate limiting interceptor backed by the cache counter store.
package ratelimit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/api"
	svccfg "github.com/MahdiBaghbani/podinbox-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/podinbox-go/internal/interceptors"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/cache"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
)

func init() {
	interceptors.Register("ratelimit", New)
}

// Config defines rate limiting parameters decoded from a profile
// at [http.interceptors.ratelimit.profiles.<name>].
type Config struct {
	RequestsPerWindow int64 `mapstructure:"requests_per_window"`
	WindowSeconds     int   `mapstructure:"window_seconds"`

	// Scope separates counters of profiles that share a cache. Default: "default".
	Scope string `mapstructure:"scope"`
}

// ApplyDefaults sets reasonable defaults for unconfigured fields.
func (c *Config) ApplyDefaults() {
	if c.RequestsPerWindow == 0 {
		c.RequestsPerWindow = 100
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 60
	}
	if c.Scope == "" {
		c.Scope = "default"
	}
}

// Limiter counts requests per client key in fixed windows.
type Limiter struct {
	counter cache.Counter
	keyFunc func(*http.Request) string
	scope   string
	limit   int64
	window  time.Duration
	log     *slog.Logger

	// onReject is called for every 429; nil when metrics are off.
	onReject func()
}

// New creates a new ratelimit interceptor from a profile config.
// Counters live in deps.Counters; clients are keyed by deps.RealIP.
func New(conf map[string]any, log *slog.Logger) (interceptors.Middleware, error) {
	var c Config
	if err := svccfg.Decode(conf, &c); err != nil {
		return nil, err
	}

	d := deps.GetDeps()
	if d == nil || d.Counters == nil || d.RealIP == nil {
		return nil, errors.New("ratelimit: shared counters and realip must be initialized")
	}

	limiter := &Limiter{
		counter: d.Counters,
		keyFunc: d.RealIP.GetClientIPString,
		scope:   c.Scope,
		limit:   c.RequestsPerWindow,
		window:  time.Duration(c.WindowSeconds) * time.Second,
		log:     logutil.NoopIfNil(log),
	}
	if d.Metrics != nil {
		limiter.onReject = d.Metrics.RecordRateLimited
	}

	return limiter.Wrap, nil
}

// Wrap is the middleware function that applies rate limiting.
// Counter errors fail open.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ratelimit:" + l.scope + ":" + l.keyFunc(r)
		count, resetAt, err := l.counter.Increment(r.Context(), key, 1, l.window)
		if err != nil {
			l.log.Warn("rate limit check failed", "scope", l.scope, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		remaining := l.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > l.limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			l.log.Debug("rate limited", "scope", l.scope, "count", count, "limit", l.limit)
			if l.onReject != nil {
				l.onReject()
			}
			api.WriteTooManyRequests(w, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithKeyFunc returns a new Limiter with a custom key function.
func (l *Limiter) WithKeyFunc(fn func(*http.Request) string) *Limiter {
	cp := *l
	cp.keyFunc = fn
	return &cp
}
