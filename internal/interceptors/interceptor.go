// Package interceptors provides cross-cutting HTTP middleware behind a name registry.
// Interceptors register in init() and are configured by named profiles.
package interceptors

import (
	"log/slog"
	"net/http"
)

// Middleware is an HTTP middleware function.
type Middleware func(http.Handler) http.Handler

// NewInterceptor is the constructor function type for interceptors.
type NewInterceptor func(conf map[string]any, log *slog.Logger) (Middleware, error)
