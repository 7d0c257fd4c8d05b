package appctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestWithLogger_And_LoggerFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := context.Background()
	ctx = WithLogger(ctx, logger)

	got, ok := LoggerFromContext(ctx)
	if !ok {
		t.Fatal("Expected LoggerFromContext to return true")
	}
	if got != logger {
		t.Error("Expected same logger instance")
	}
}

func TestLoggerFromContext_NoLogger(t *testing.T) {
	ctx := context.Background()

	got, ok := LoggerFromContext(ctx)
	if ok {
		t.Error("Expected LoggerFromContext to return false for context without logger")
	}
	if got != nil {
		t.Error("Expected nil logger")
	}
}

func TestLoggerFromContext_NilLogger(t *testing.T) {
	// Create a context with a nil logger stored
	ctx := context.WithValue(context.Background(), loggerKey{}, (*slog.Logger)(nil))

	got, ok := LoggerFromContext(ctx)
	if ok {
		t.Error("Expected LoggerFromContext to return false for nil logger")
	}
	if got != nil {
		t.Error("Expected nil logger")
	}
}

func TestGetLogger_WithLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)

	got := GetLogger(ctx)
	if got != logger {
		t.Error("Expected GetLogger to return the attached logger")
	}
}

func TestGetLogger_WithoutLogger(t *testing.T) {
	ctx := context.Background()

	got := GetLogger(ctx)
	if got == nil {
		t.Fatal("Expected GetLogger to return non-nil logger")
	}

	// Should return slog.Default()
	if got != slog.Default() {
		t.Error("Expected GetLogger to return slog.Default() when no logger in context")
	}
}

func TestLogger_ActuallyLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)

	// Get logger and log something
	GetLogger(ctx).Info("test message", "key", "value")

	output := buf.String()
	if output == "" {
		t.Fatal("Expected log output")
	}
	if !bytes.Contains(buf.Bytes(), []byte("test message")) {
		t.Errorf("Expected log to contain 'test message', got: %s", output)
	}
	if !bytes.Contains(buf.Bytes(), []byte("key=value")) {
		t.Errorf("Expected log to contain 'key=value', got: %s", output)
	}
}

func TestRunID(t *testing.T) {
	ctx := context.Background()
	if got := RunIDFromContext(ctx); got != "" {
		t.Errorf("RunIDFromContext() = %q, want empty", got)
	}

	ctx = WithRunID(ctx, "0190f2c4-run")
	if got := RunIDFromContext(ctx); got != "0190f2c4-run" {
		t.Errorf("RunIDFromContext() = %q, want %q", got, "0190f2c4-run")
	}
}

func TestRunSlot_FilledByWithRunID(t *testing.T) {
	ctx, slot := WithRunSlot(context.Background())
	if slot.ID() != "" {
		t.Fatalf("ID() = %q before any run", slot.ID())
	}

	runCtx := WithRunID(ctx, "0192f0c4-run")
	if slot.ID() != "0192f0c4-run" {
		t.Errorf("slot ID = %q, want run ID", slot.ID())
	}
	if RunIDFromContext(runCtx) != "0192f0c4-run" {
		t.Errorf("RunIDFromContext = %q", RunIDFromContext(runCtx))
	}
	if RunIDFromContext(ctx) != "" {
		t.Error("parent context must not see the run ID")
	}
}

func TestWithRunID_WithoutSlot(t *testing.T) {
	if got := RunIDFromContext(WithRunID(context.Background(), "r")); got != "r" {
		t.Errorf("RunIDFromContext = %q", got)
	}
}
