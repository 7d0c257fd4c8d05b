package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/api"
	"github.com/MahdiBaghbani/podinbox-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	httpmw "github.com/MahdiBaghbani/podinbox-go/internal/platform/http/middleware"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/otel"
)

// mountService mounts a service under its prefix and tracks it for lifecycle management.
func (s *Server) mountService(r chi.Router, svc service.Service) {
	if svc == nil {
		return
	}

	if prefix := svc.Prefix(); prefix == "" {
		r.Mount("/", svc.Handler())
	} else {
		r.Mount("/"+prefix, svc.Handler())
	}

	s.mountedServices = append(s.mountedServices, svc)
}

// setupRoutes creates the chi router with all services mounted.
func (s *Server) setupRoutes() chi.Router {
	d := deps.GetDeps()
	r := chi.NewRouter()

	// Always-on transport middleware (order is invariant):
	// RequestID -> tracing -> request-scoped logger -> access log -> recoverer
	r.Use(chimw.RequestID)
	r.Use(httpmw.TracingMiddleware(otel.Tracer()))
	r.Use(httpmw.RequestLoggerMiddleware(s.logger, d.RealIP))
	r.Use(httpmw.AccessLogMiddleware(s.logger, d.RealIP))
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteNotFound(w, "no route for "+r.URL.Path)
	})

	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, s.mountAppEndpoints)
	} else {
		s.mountAppEndpoints(r)
	}

	return r
}

// mountAppEndpoints mounts core services in registry order, then optional ones.
func (s *Server) mountAppEndpoints(r chi.Router) {
	for _, name := range service.CoreServices {
		s.mountService(r, s.services[name])
	}
	for _, name := range service.OptionalServices {
		s.mountService(r, s.services[name])
	}
}
