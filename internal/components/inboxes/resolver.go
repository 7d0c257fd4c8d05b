package inboxes

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/linkeddata"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
)

// StorageResolver finds the storage root declared by a WebID profile.
// found is false when the profile declares none; err is a *DiscoveryError
// when the profile could not be read.
type StorageResolver interface {
	ResolveStorageRoot(ctx context.Context, webID string) (root string, found bool, err error)
}

// InboxDiscoverer finds the inbox declared for a resource.
// found is false when no inbox relation exists or the document is missing.
type InboxDiscoverer interface {
	DiscoverInbox(ctx context.Context, locator string) (inbox string, found bool, err error)
}

// DocumentSource fetches parsed pod documents. Implemented by *linkeddata.Fetcher.
type DocumentSource interface {
	Fetch(ctx context.Context, locator string) (*linkeddata.Document, error)
}

// ProfileStorageResolver reads pim:storage from the WebID profile.
type ProfileStorageResolver struct {
	docs DocumentSource
	log  *slog.Logger
}

// NewStorageResolver creates a ProfileStorageResolver.
func NewStorageResolver(docs DocumentSource, logger *slog.Logger) *ProfileStorageResolver {
	return &ProfileStorageResolver{docs: docs, log: logutil.NoopIfNil(logger)}
}

// ResolveStorageRoot returns the first pim:storage of webID, with a trailing slash.
func (r *ProfileStorageResolver) ResolveStorageRoot(ctx context.Context, webID string) (string, bool, error) {
	doc, err := r.docs.Fetch(ctx, webID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		// A missing profile is not "no storage": the WebID itself is broken.
		return "", false, &DiscoveryError{Op: OpResolveStorage, Target: webID, Err: err}
	}

	for _, subject := range subjectsFor(webID, doc) {
		if root, ok := doc.Graph.FirstObject(subject, linkeddata.PIMStorage); ok {
			return containerURL(root), true, nil
		}
	}

	r.log.Debug("profile declares no storage", "host", hostOf(webID))
	return "", false, nil
}

// LinkedDataDiscoverer finds inboxes through Link headers and RDF relations.
type LinkedDataDiscoverer struct {
	docs DocumentSource
	log  *slog.Logger
}

// NewInboxDiscoverer creates a LinkedDataDiscoverer.
func NewInboxDiscoverer(docs DocumentSource, logger *slog.Logger) *LinkedDataDiscoverer {
	return &LinkedDataDiscoverer{docs: docs, log: logutil.NoopIfNil(logger)}
}

// inboxPredicates in lookup order.
var inboxPredicates = []string{linkeddata.LDPInbox, linkeddata.SolidInbox}

// DiscoverInbox checks the ldp#inbox Link header, then ldp:inbox, then solid:inbox.
// The first hit wins. A missing document means no inbox.
func (d *LinkedDataDiscoverer) DiscoverInbox(ctx context.Context, locator string) (string, bool, error) {
	doc, err := d.docs.Fetch(ctx, locator)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		if errors.Is(err, linkeddata.ErrNotFound) {
			d.log.Debug("document not found", "host", hostOf(locator))
			return "", false, nil
		}
		return "", false, &DiscoveryError{Op: OpDiscoverInbox, Target: locator, Err: err}
	}

	if links := doc.LinkTargets(linkeddata.LDPInbox); len(links) > 0 {
		return links[0], true, nil
	}

	subjects := subjectsFor(locator, doc)
	for _, pred := range inboxPredicates {
		for _, subject := range subjects {
			if inbox, ok := doc.Graph.FirstObject(subject, pred); ok {
				return inbox, true, nil
			}
		}
	}
	return "", false, nil
}

// subjectsFor lists the subjects a relation may hang off: the locator as given
// (fragment kept), the document, and the same fragment on the final URL when
// the server redirected.
func subjectsFor(locator string, doc *linkeddata.Document) []string {
	out := []string{locator}
	add := func(s string) {
		for _, have := range out {
			if have == s {
				return
			}
		}
		out = append(out, s)
	}

	if u, err := url.Parse(locator); err == nil && u.Fragment != "" {
		add(doc.URL + "#" + u.Fragment)
	}
	if docURL, err := linkeddata.DocumentURL(locator); err == nil {
		add(docURL)
	}
	add(doc.URL)
	return out
}

// containerURL makes root name a container so that relative names resolve inside it.
func containerURL(root string) string {
	if strings.HasSuffix(root, "/") {
		return root
	}
	return root + "/"
}
