// Package client provides a safe outbound HTTP client with SSRF protections.
// See client.go for the concrete implementation.

package client

import "context"

// DocumentFetcher is the shared interface for reading remote documents.
// Implemented by Client; used by the linked data fetcher so tests can swap in
// a fake without opening sockets.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url, accept string) (*Response, error)
}

var _ DocumentFetcher = (*Client)(nil)
