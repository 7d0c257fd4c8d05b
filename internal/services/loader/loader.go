// Package loader triggers service and interceptor registration via blank imports.
// Import this package to ensure all services are registered with the registry.
package loader

import (
	// Import services here to trigger their init() registration.
	_ "github.com/MahdiBaghbani/podinbox-go/internal/services/inboxes"
	_ "github.com/MahdiBaghbani/podinbox-go/internal/services/metrics"

	// Interceptors register the same way.
	_ "github.com/MahdiBaghbani/podinbox-go/internal/interceptors/ratelimit"
)
