package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

// logCapture collects JSON log lines written through a real slog handler.
type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newLogCapture(level slog.Level) (*slog.Logger, *logCapture) {
	c := &logCapture{}
	return slog.New(slog.NewJSONHandler(c, &slog.HandlerOptions{Level: level})), c
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *logCapture) lines(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(c.buf.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var line map[string]any
		if err := json.Unmarshal(raw, &line); err != nil {
			t.Fatalf("log line %q is not JSON: %v", raw, err)
		}
		out = append(out, line)
	}
	return out
}

// find returns the first line with message msg, or nil.
func (c *logCapture) find(t *testing.T, msg string) map[string]any {
	t.Helper()
	for _, line := range c.lines(t) {
		if line["msg"] == msg {
			return line
		}
	}
	return nil
}
