package service

import (
	"log/slog"
	"net/http"
)

// Service represents an HTTP service that can be registered and mounted.
// Prefix is the path segment under external_base_path, without slashes.
type Service interface {
	Handler() http.Handler
	Prefix() string
	Close() error
}

// NewService is the constructor function type for services.
// conf is the raw [http.services.<name>] table, nil when absent.
type NewService func(conf map[string]any, log *slog.Logger) (Service, error)
