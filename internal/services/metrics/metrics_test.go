package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	platformmetrics "github.com/MahdiBaghbani/podinbox-go/internal/platform/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RequiresMetrics(t *testing.T) {
	deps.ResetDeps()
	defer deps.ResetDeps()

	if _, err := New(nil, testLogger()); err == nil {
		t.Fatal("expected error without shared deps")
	}

	deps.SetDeps(&deps.Deps{})
	if _, err := New(nil, testLogger()); err == nil {
		t.Fatal("expected error without metrics registry")
	}
}

func TestService_ServesRegistry(t *testing.T) {
	deps.ResetDeps()
	defer deps.ResetDeps()

	m := platformmetrics.New()
	m.RecordRun("found")
	m.RecordStage("global", 20*time.Millisecond, false)
	deps.SetDeps(&deps.Deps{Metrics: m})

	svc, err := New(nil, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if svc.Prefix() != "metrics" {
		t.Errorf("Prefix() = %q", svc.Prefix())
	}

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`podinbox_discovery_runs_total{outcome="found"} 1`,
		`podinbox_discovery_stage_duration_seconds_count{stage="global"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
