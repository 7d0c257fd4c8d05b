// Package metrics exposes the Prometheus registry over HTTP.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/podinbox-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/podinbox-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
)

func init() {
	service.MustRegister("metrics", New)
}

// Config holds metrics service configuration. It has no keys yet.
type Config struct{}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {}

// Service serves the scrape endpoint.
type Service struct {
	router chi.Router
}

// New creates the metrics service. It fails when metrics are disabled,
// so callers only construct it when metrics.enabled is set.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "metrics", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Metrics == nil {
		return nil, errors.New("metrics: registry not initialized")
	}

	r := chi.NewRouter()
	r.Handle("/", d.Metrics.Handler())

	return &Service{router: r}, nil
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Prefix returns the URL prefix for this service.
func (s *Service) Prefix() string {
	return "metrics"
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}
