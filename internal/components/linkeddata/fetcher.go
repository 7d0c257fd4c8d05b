// Package linkeddata fetches Solid pod documents and exposes the RDF relations
// and Link headers inbox discovery needs.
package linkeddata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tomnomnom/linkheader"

	httpclient "github.com/MahdiBaghbani/podinbox-go/internal/platform/http/client"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
)

// Document is a fetched and parsed pod document.
type Document struct {
	// URL is the final document URL after redirects, without fragment.
	URL   string
	Graph *Graph
	Links linkheader.Links
}

// LinkTargets returns the absolute targets of all Link headers with rel.
func (d *Document) LinkTargets(rel string) []string {
	base, _ := url.Parse(d.URL)
	var out []string
	for _, l := range d.Links {
		// rel may carry several space-separated relation types
		for _, r := range strings.Fields(l.Rel) {
			if r == rel {
				out = append(out, resolveAgainst(base, l.URL))
				break
			}
		}
	}
	return out
}

// Fetcher reads RDF documents through the outbound HTTP client.
type Fetcher struct {
	client httpclient.DocumentFetcher
	log    *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(client httpclient.DocumentFetcher, logger *slog.Logger) *Fetcher {
	return &Fetcher{client: client, log: logutil.NoopIfNil(logger)}
}

// Fetch retrieves the document named by locator. The fragment is not sent.
// 404 and 410 map to ErrNotFound; other non-2xx statuses to *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (*Document, error) {
	docURL, err := DocumentURL(locator)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Fetch(ctx, docURL, AcceptRDF)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", docURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("fetch %s: %w", docURL, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: docURL, StatusCode: resp.StatusCode}
	}

	finalURL := docURL
	if resp.URL != nil {
		u := *resp.URL
		u.Fragment = ""
		finalURL = u.String()
	}

	graph, err := ParseGraph(finalURL, resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", finalURL, err)
	}

	f.log.Log(ctx, logutil.LevelTrace, "fetched document",
		"url", finalURL, "triples", graph.Len(), "status", resp.StatusCode)

	return &Document{
		URL:   finalURL,
		Graph: graph,
		Links: linkheader.ParseMultiple(resp.Header.Values("Link")),
	}, nil
}

// DocumentURL strips the fragment from locator and checks it is an absolute http(s) URL.
func DocumentURL(locator string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return "", fmt.Errorf("invalid locator %q: %w", locator, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid locator %q: not an absolute http(s) URL", locator)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
