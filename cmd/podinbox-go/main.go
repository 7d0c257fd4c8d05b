// Package main is the entrypoint for the podinbox-go server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/i18n"
	"github.com/MahdiBaghbani/podinbox-go/internal/components/inboxes"
	"github.com/MahdiBaghbani/podinbox-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/cache"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/http/server"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/otel"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"

	// Register cache drivers
	_ "github.com/MahdiBaghbani/podinbox-go/internal/platform/cache/loader"
	// Register services and interceptors
	_ "github.com/MahdiBaghbani/podinbox-go/internal/services/loader"
	// Register store drivers
	_ "github.com/MahdiBaghbani/podinbox-go/internal/platform/store/memory"
	_ "github.com/MahdiBaghbani/podinbox-go/internal/platform/store/sqlite"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	publicOrigin := flag.String("public-origin", "", "Public origin (overrides config)")
	externalBasePath := flag.String("external-base-path", "", "External base path (overrides config)")
	ssrfMode := flag.String("ssrf-mode", "", "SSRF protection mode: strict or off (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or redis (overrides config)")
	storeDriver := flag.String("store-driver", "", "Run store driver: memory or sqlite (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "Run store data directory (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	loggingAllowSensitive := flag.String("logging-allow-sensitive", "", "Allow full WebIDs in logs: true or false (overrides config)")
	tracingEndpoint := flag.String("tracing-endpoint", "", "OTLP/HTTP collector URL; enables tracing (overrides config)")
	discoverWebID := flag.String("discover", "", "Discover inboxes for this WebID, print JSON and exit")
	lang := flag.String("lang", "", "Label language for -discover (default: discovery.default_language)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:            listenAddr,
			PublicOrigin:          publicOrigin,
			ExternalBasePath:      externalBasePath,
			SSRFMode:              ssrfMode,
			TLSMode:               tlsMode,
			CacheDriver:           cacheDriver,
			StoreDriver:           storeDriver,
			StoreDataDir:          storeDataDir,
			LoggingLevel:          loggingLevel,
			LoggingAllowSensitive: loggingAllowSensitive,
			TracingEndpoint:       tracingEndpoint,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// One-shot mode logs to stderr so stdout carries only the JSON result.
	logOut := os.Stdout
	if *discoverWebID != "" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: logutil.ParseLevel(cfg.Logging.Level)}))
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Debug("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer flushTracing(shutdownTracing, logger)

	catalog, err := i18n.LoadEmbedded()
	if err != nil {
		logger.Error("failed to load label catalogs", "error", err)
		os.Exit(1)
	}

	if *discoverWebID != "" {
		code := discoverOnce(ctx, cfg, logger, catalog, *discoverWebID, *lang)
		flushTracing(shutdownTracing, logger)
		os.Exit(code)
	}

	// Metrics registry (nil when disabled)
	var reg *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg = metrics.New()
	}

	// Run store (nil when recording is disabled)
	var runStore store.Driver
	if cfg.RecordRunsEnabled() {
		runStore, err = store.New(&store.DriverConfig{
			Driver:  cfg.Store.Driver,
			DataDir: cfg.Store.DataDir,
		})
		if err != nil {
			logger.Error("failed to create run store", "error", err)
			os.Exit(1)
		}
		if err := runStore.Init(ctx); err != nil {
			logger.Error("failed to initialize run store", "driver", runStore.Name(), "error", err)
			os.Exit(1)
		}
		defer runStore.Close()
		logger.Info("run recording enabled", "driver", runStore.Name())
	}

	aggregator, err := newAggregator(cfg, logger, reg, runStore)
	if err != nil {
		logger.Error("failed to build discovery", "error", err)
		os.Exit(1)
	}

	// Rate-limit counters (defaults to in-memory if not configured)
	// Passes driver-specific config from [cache.drivers.<driver>] section
	counters, err := cache.NewFromConfig(cfg.Cache.Driver, cfg.Cache.Drivers)
	if err != nil {
		logger.Error("failed to create counter store", "error", err)
		os.Exit(1)
	}
	defer counters.Close()

	trusted := realip.NewTrustedProxies(cfg.Server.TrustedProxies)
	if trusted.Len() != len(cfg.Server.TrustedProxies) {
		logger.Warn("some trusted_proxies entries were invalid and ignored",
			"configured", len(cfg.Server.TrustedProxies), "valid", trusted.Len())
	}

	d := &deps.Deps{
		Aggregator: aggregator,
		Catalog:    catalog,
		Metrics:    reg,
		Config:     cfg,
		Counters:   counters,
		RealIP:     trusted,
		Runs:       runStore,
	}
	deps.SetDeps(d)

	services, err := buildServices(cfg, logger)
	if err != nil {
		logger.Error("failed to create services", "error", err)
		os.Exit(1)
	}

	// Create and start server
	srv, err := server.New(cfg, logger, services)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop", "version", version)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildServices constructs every core service and the enabled optional ones.
func buildServices(cfg *config.Config, logger *slog.Logger) (map[string]service.Service, error) {
	names := append([]string(nil), service.CoreServices...)
	if cfg.Metrics.Enabled {
		names = append(names, "metrics")
	}

	services := make(map[string]service.Service, len(names))
	for _, name := range names {
		newFunc := service.Get(name)
		if newFunc == nil {
			return nil, fmt.Errorf("service %q is not registered", name)
		}
		svc, err := newFunc(cfg.BuildServiceConfig(name), logger.With("service", name))
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		services[name] = svc
	}
	return services, nil
}

// discoverOnce runs a single aggregation and prints the result as JSON.
// Exit code 0 covers both found and no-inbox; faults and bad input exit 1.
func discoverOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, catalog *i18n.Bundle, webID, lang string) int {
	aggregator, err := newAggregator(cfg, logger, nil, nil)
	if err != nil {
		logger.Error("failed to build discovery", "error", err)
		return 1
	}

	tag, ok := i18n.ParseTag(lang)
	if !ok {
		tag, err = language.Parse(cfg.Discovery.DefaultLanguage)
		if err != nil {
			tag = language.AmericanEnglish
		}
	}
	localizer := catalog.Localizer(tag)

	res, err := aggregator.WithLabeler(localizer).Aggregate(ctx, webID)
	out := struct {
		*inboxes.Result
		Signal *inboxes.Signal `json:"signal,omitempty"`
	}{Result: res, Signal: inboxes.SignalFor(err, localizer)}

	if errors.Is(err, inboxes.ErrInvalidIdentity) {
		logger.Error("invalid WebID", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		logger.Error("failed to write result", "error", encErr)
		return 1
	}

	if err != nil && !errors.Is(err, inboxes.ErrNoInbox) {
		return 1
	}
	return 0
}

func flushTracing(shutdown func(context.Context) error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}
}
