// Package appctx provides context-based utilities for cross-cutting concerns.
// Request handlers and discovery runs pull their logger and run ID from here.
package appctx

import (
	"context"
	"log/slog"
	"sync"
)

type loggerKey struct{}

type runIDKey struct{}

type runSlotKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger from the context (if present).
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return l, ok && l != nil
}

// GetLogger returns the logger from the context, or slog.Default() if missing.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return slog.Default()
}

// WithRunID attaches a discovery run ID to the context. It also fills the
// RunSlot of an enclosing request, if any.
func WithRunID(ctx context.Context, id string) context.Context {
	if slot, ok := ctx.Value(runSlotKey{}).(*RunSlot); ok {
		slot.set(id)
	}
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunSlot receives the ID of the discovery run started while serving a
// request, so middleware outside the handler can log it.
type RunSlot struct {
	mu sync.Mutex
	id string
}

func (s *RunSlot) set(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// ID returns the recorded run ID, or "" when no run started.
func (s *RunSlot) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// WithRunSlot attaches an empty RunSlot to the context.
func WithRunSlot(ctx context.Context) (context.Context, *RunSlot) {
	slot := &RunSlot{}
	return context.WithValue(ctx, runSlotKey{}, slot), slot
}

// RunIDFromContext returns the discovery run ID, or "" outside a run.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
