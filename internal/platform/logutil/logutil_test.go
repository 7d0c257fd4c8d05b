package logutil

import (
	"log/slog"
	"testing"
)

func TestNoopIfNil(t *testing.T) {
	if NoopIfNil(nil) != Noop() {
		t.Error("NoopIfNil(nil) should return the shared discard logger")
	}

	l := slog.Default()
	if NoopIfNil(l) != l {
		t.Error("NoopIfNil(l) should return l unchanged")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
