// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/MahdiBaghbani/podinbox-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"

	tlspkg "github.com/MahdiBaghbani/podinbox-go/internal/platform/http/tls"
)

var ErrMissingSharedDeps = errors.New("shared deps not initialized: call deps.SetDeps() before server.New()")

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	services   map[string]service.Service // keyed by service name (inboxes, metrics)

	// challengeServer answers ACME HTTP-01 challenges and redirects to HTTPS.
	// Nil except in acme mode.
	challengeServer *http.Server

	// mountedServices tracks services for lifecycle management (Close on shutdown).
	// Stored in mount order; closed in reverse order during shutdown.
	mountedServices []service.Service
}

// New creates a new Server with the given configuration.
// Services are passed as a name->service map; nil entries are safe (skipped at mount time).
// Returns an error if SharedDeps is not initialized.
func New(cfg *config.Config, logger *slog.Logger, services map[string]service.Service) (*Server, error) {
	logger = logutil.NoopIfNil(logger)

	if deps.GetDeps() == nil {
		return nil, ErrMissingSharedDeps
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		services: services,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Discovery fetches up to three remote documents per request.
		WriteTimeout: time.Duration(3*cfg.OutboundHTTP.TimeoutMS)*time.Millisecond + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler. Used by tests and by callers that
// bring their own listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"public_origin", s.cfg.PublicOrigin,
		"external_base_path", s.cfg.ExternalBasePath,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "off":
		return s.httpServer.ListenAndServe()

	case "acme":
		return s.startACME()

	case "static", "selfsigned":
		tlsManager := tlspkg.NewTLSManager(&s.cfg.TLS, s.logger)
		hostname, err := originHostname(s.cfg.PublicOrigin)
		if err != nil {
			return fmt.Errorf("failed to derive TLS hostname: %w", err)
		}
		tlsConfig, err := tlsManager.GetTLSConfig(hostname)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}

		s.httpServer.TLSConfig = tlsConfig
		// Empty file names use TLSConfig.Certificates
		return s.httpServer.ListenAndServeTLS("", "")

	default:
		return fmt.Errorf("%w: %s", tlspkg.ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// originHostname returns the bare host of public_origin for certificate names.
func originHostname(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("public_origin %q has no host", origin)
	}
	return u.Hostname(), nil
}

// Shutdown gracefully shuts down the server and all mounted services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Stop answering challenges before tearing down HTTPS.
	var challengeErr error
	if s.challengeServer != nil {
		challengeErr = s.challengeServer.Shutdown(ctx)
	}

	httpErr := s.httpServer.Shutdown(ctx)

	// Close services in reverse mount order (last mounted = first closed)
	for i := len(s.mountedServices) - 1; i >= 0; i-- {
		svc := s.mountedServices[i]
		if err := svc.Close(); err != nil {
			s.logger.Warn("service close error",
				"service", svc.Prefix(),
				"error", err,
			)
			// Continue closing other services (best-effort)
		} else {
			s.logger.Debug("service closed", "service", svc.Prefix())
		}
	}

	return errors.Join(challengeErr, httpErr)
}
