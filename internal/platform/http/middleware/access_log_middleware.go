package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/http/realip"
)

// AccessLogMiddleware writes one "request" line per request with the status,
// size, duration and matched route. Requests that ran inbox discovery also
// carry run_id, which joins the line to the run record and stage logs.
//
// The base fields come from the request-scoped logger set by
// RequestLoggerMiddleware; trustedProxies is only used when it is missing.
func AccessLogMiddleware(log *slog.Logger, trustedProxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, slot := appctx.WithRunSlot(r.Context())
			r = r.WithContext(ctx)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger, ok := appctx.LoggerFromContext(ctx)
				if !ok {
					logger = baseRequestLogger(log, trustedProxies, r)
				}

				attrs := []any{
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				}
				if rctx := chi.RouteContext(ctx); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						attrs = append(attrs, "route", pattern)
					}
				}
				if id := slot.ID(); id != "" {
					attrs = append(attrs, "run_id", id)
				}
				logger.Info("request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
