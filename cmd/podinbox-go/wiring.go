package main

import (
	"fmt"
	"log/slog"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/inboxes"
	"github.com/MahdiBaghbani/podinbox-go/internal/components/linkeddata"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	httpclient "github.com/MahdiBaghbani/podinbox-go/internal/platform/http/client"
	tlspkg "github.com/MahdiBaghbani/podinbox-go/internal/platform/http/tls"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"

	inboxsvc "github.com/MahdiBaghbani/podinbox-go/internal/services/inboxes"
)

// newAggregator wires the outbound client, the linked data fetcher and both
// collaborators into an Aggregator. reg and runs may be nil.
func newAggregator(cfg *config.Config, logger *slog.Logger, reg *metrics.Metrics, runs store.RunStore) (*inboxes.Aggregator, error) {
	rootCAs, err := tlspkg.BuildRootCAPool(cfg.OutboundHTTP.CAFile, cfg.OutboundHTTP.CADir)
	if err != nil {
		return nil, fmt.Errorf("failed to load outbound CA roots: %w", err)
	}

	client := httpclient.New(&cfg.OutboundHTTP, httpclient.WithRootCAs(rootCAs))
	docs := linkeddata.NewFetcher(client, logger)

	observers := []inboxes.Observer{inboxsvc.MetricsObserver(reg)}
	if runs != nil {
		observers = append(observers, inboxsvc.NewRunRecorder(runs, logger))
	}

	return inboxes.NewAggregator(
		inboxes.NewStorageResolver(docs, logger),
		inboxes.NewInboxDiscoverer(docs, logger),
		nil,
		inboxes.WithObserver(inboxes.Observers(observers...)),
		inboxes.WithLogger(logger),
		inboxes.WithSensitiveLogging(cfg.Logging.AllowSensitive),
	), nil
}
