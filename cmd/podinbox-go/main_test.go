package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/i18n"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/cache/memory"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/metrics"
)

func TestBuildServices(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		metricsEnabled bool
		want           []string
	}{
		{"metrics enabled", true, []string{"inboxes", "metrics"}},
		{"metrics disabled", false, []string{"inboxes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DevConfig()
			cfg.Metrics.Enabled = tt.metricsEnabled

			agg, err := newAggregator(cfg, logger, nil, nil)
			if err != nil {
				t.Fatalf("newAggregator: %v", err)
			}

			var reg *metrics.Metrics
			if tt.metricsEnabled {
				reg = metrics.New()
			}

			deps.ResetDeps()
			defer deps.ResetDeps()
			deps.SetDeps(&deps.Deps{
				Aggregator: agg,
				Catalog:    i18n.MustLoadEmbedded(),
				Metrics:    reg,
				Config:     cfg,
				Counters:   memory.New(time.Minute, time.Minute),
				RealIP:     realip.NewTrustedProxies(cfg.Server.TrustedProxies),
			})

			services, err := buildServices(cfg, logger)
			if err != nil {
				t.Fatalf("buildServices: %v", err)
			}
			if len(services) != len(tt.want) {
				t.Fatalf("got %d services, want %v", len(services), tt.want)
			}
			for _, name := range tt.want {
				if services[name] == nil {
					t.Errorf("missing service %q", name)
				}
			}
		})
	}
}

func TestNewAggregator_BadCAFile(t *testing.T) {
	cfg := config.DevConfig()
	cfg.OutboundHTTP.CAFile = "/nonexistent/ca.pem"

	if _, err := newAggregator(cfg, nil, nil, nil); err == nil {
		t.Fatal("expected error for unreadable ca_file")
	}
}
