// Package middleware provides always-on transport middleware for HTTP servers.
package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/http/realip"
)

// RequestLoggerMiddleware attaches a request-scoped logger to the request context.
//
// Must run after chimw.RequestID. When TracingMiddleware runs first, the
// logger also carries trace_id so log lines join up with spans.
func RequestLoggerMiddleware(base *slog.Logger, trustedProxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := baseRequestLogger(base, trustedProxies, r)
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				reqLogger = reqLogger.With("trace_id", sc.TraceID().String())
			}

			ctx := appctx.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// baseRequestLogger attaches request_id, method, path and client_ip. The
// path never includes the query string, which carries the WebID.
func baseRequestLogger(base *slog.Logger, trustedProxies *realip.TrustedProxies, r *http.Request) *slog.Logger {
	clientIP := "unknown"
	if trustedProxies != nil {
		clientIP = trustedProxies.GetClientIPString(r)
	}
	return base.With(
		"request_id", chimw.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"client_ip", clientIP,
	)
}
