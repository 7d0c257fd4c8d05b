// Package inboxes provides the inbox discovery HTTP service.
package inboxes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/api"
	discovery "github.com/MahdiBaghbani/podinbox-go/internal/components/inboxes"
	"github.com/MahdiBaghbani/podinbox-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/podinbox-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/podinbox-go/internal/interceptors"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"
)

func init() {
	service.MustRegister("inboxes", New)
}

// WebIDParam is the query parameter naming the user to discover.
const WebIDParam = "webid"

// Config holds inboxes service configuration.
type Config struct {
	// Ratelimit holds rate limiting configuration for this service.
	Ratelimit RatelimitConfig `mapstructure:"ratelimit"`

	// RunTimeout bounds one discovery run. Default: 30s.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// RatelimitConfig holds the per-service rate limiting opt-in.
type RatelimitConfig struct {
	// Profile is the name of the ratelimit profile to use from
	// [http.interceptors.ratelimit.profiles.<name>].
	Profile string `mapstructure:"profile"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Second
	}
}

// Service is the inboxes service.
type Service struct {
	router   chi.Router
	conf     *Config
	log      *slog.Logger
	d        *deps.Deps
	fallback language.Tag
}

// discoverResponse is the body of GET /discover.
type discoverResponse struct {
	RunID    string                 `json:"run_id"`
	WebID    string                 `json:"webid,omitempty"`
	Inboxes  []discovery.Descriptor `json:"inboxes"`
	Failures []discovery.Failure    `json:"failures,omitempty"`
	Signal   *discovery.Signal      `json:"signal,omitempty"`
}

// faultResponse is the body of a failed GET /discover. It carries no list.
type faultResponse struct {
	RunID    string              `json:"run_id"`
	Failures []discovery.Failure `json:"failures,omitempty"`
	Signal   *discovery.Signal   `json:"signal"`
}

// New creates a new inboxes service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "inboxes", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Aggregator == nil || d.Catalog == nil {
		return nil, errors.New("inboxes: aggregator and catalog are required")
	}

	s := &Service{conf: &c, log: log, d: d, fallback: language.AmericanEnglish}
	if d.Config != nil {
		if tag, err := language.Parse(d.Config.Discovery.DefaultLanguage); err == nil {
			s.fallback = tag
		}
	}

	// Build ratelimit middleware for /discover if profile is configured
	var discoverMiddleware func(http.Handler) http.Handler
	if c.Ratelimit.Profile != "" {
		var interceptorsCfg map[string]map[string]any
		if d.Config != nil {
			interceptorsCfg = d.Config.HTTP.Interceptors
		}
		discoverMiddleware, err = interceptors.Build(interceptorsCfg, "ratelimit", c.Ratelimit.Profile, log)
		if err != nil {
			return nil, fmt.Errorf("inboxes: %w", err)
		}
	}

	r := chi.NewRouter()
	r.Get("/healthz", api.HealthHandler)
	r.Get("/runs/{id}", s.handleGetRun)

	// Apply ratelimit middleware only to /discover
	if discoverMiddleware != nil {
		r.With(discoverMiddleware).Get("/discover", s.handleDiscover)
	} else {
		r.Get("/discover", s.handleDiscover)
	}

	s.router = r
	return s, nil
}

func (s *Service) handleDiscover(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	webID := strings.TrimSpace(r.URL.Query().Get(WebIDParam))
	if webID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "webid query parameter is required")
		return
	}

	tag := s.d.Catalog.ResolveTag(r, s.fallback)
	localizer := s.d.Catalog.Localizer(tag)
	w.Header().Set("Content-Language", localizer.Tag().String())

	ctx, cancel := context.WithTimeout(r.Context(), s.conf.RunTimeout)
	defer cancel()

	res, err := s.d.Aggregator.WithLabeler(localizer).Aggregate(ctx, webID)

	var fault *discovery.FaultError
	switch {
	case err == nil:
		api.WriteJSON(w, http.StatusOK, discoverResponse{
			RunID:    res.RunID,
			WebID:    res.WebID,
			Inboxes:  res.Inboxes,
			Failures: res.Failures,
		})

	case errors.Is(err, discovery.ErrInvalidIdentity):
		api.WriteBadRequest(w, api.ReasonInvalidIdentity, err.Error())

	case errors.Is(err, discovery.ErrNoInbox):
		// An empty list is a valid answer; the signal tells the caller why.
		api.WriteJSON(w, http.StatusOK, discoverResponse{
			RunID:    res.RunID,
			WebID:    res.WebID,
			Inboxes:  []discovery.Descriptor{},
			Failures: res.Failures,
			Signal:   discovery.SignalFor(err, localizer),
		})

	case errors.As(err, &fault):
		api.WriteJSON(w, http.StatusBadGateway, faultResponse{
			RunID:    fault.RunID,
			Failures: fault.Failures,
			Signal:   discovery.SignalFor(err, localizer),
		})

	default:
		log.Error("inbox discovery failed unexpectedly", "error", err)
		api.WriteInternalError(w, "inbox discovery failed")
	}
}

func (s *Service) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.d.Runs == nil {
		api.WriteNotFound(w, "run recording is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := s.d.Runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		api.WriteNotFound(w, "run not found")
		return
	}
	if err != nil {
		appctx.GetLogger(r.Context()).Error("failed to load run", "run_id", id, "error", err)
		api.WriteInternalError(w, "failed to load run")
		return
	}

	api.WriteJSON(w, http.StatusOK, rec)
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Prefix returns the URL prefix for this service.
func (s *Service) Prefix() string {
	return "inboxes"
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}
