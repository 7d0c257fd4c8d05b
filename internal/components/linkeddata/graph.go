package linkeddata

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"

	"github.com/knakk/rdf"
)

// Graph is an immutable set of triples parsed from one document.
// IRIs returned by its accessors are absolute, resolved against the document URL.
type Graph struct {
	base    *url.URL
	triples []rdf.Triple
}

// ParseGraph decodes body as Turtle or N-Triples, selected by contentType.
// An empty contentType is treated as Turtle. Relative IRIs resolve against base.
func ParseGraph(base string, body []byte, contentType string) (*Graph, error) {
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return nil, fmt.Errorf("%w: base %q is not absolute", ErrParse, base)
	}
	baseURL.Fragment = ""

	format, err := formatFor(contentType)
	if err != nil {
		return nil, err
	}

	// Relative IRIs (<#me>, <../>) are left as the decoder reports them and
	// resolved per RFC 3986 in Resolve, since the decoder only concatenates.
	triples, err := rdf.NewTripleDecoder(bytes.NewReader(body), format).DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return &Graph{base: baseURL, triples: triples}, nil
}

func formatFor(contentType string) (rdf.Format, error) {
	if contentType == "" {
		return rdf.Turtle, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return rdf.Turtle, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}
	switch mediaType {
	case MediaTurtle, "application/x-turtle", "text/plain", "application/octet-stream":
		return rdf.Turtle, nil
	case MediaNTriples:
		return rdf.NTriples, nil
	default:
		return rdf.Turtle, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mediaType)
	}
}

// Len returns the number of triples.
func (g *Graph) Len() int {
	return len(g.triples)
}

// Objects returns the IRI objects of all triples matching subject and predicate,
// in document order. Literal and blank node objects are skipped.
func (g *Graph) Objects(subject, predicate string) []string {
	subject = g.Resolve(subject)
	var out []string
	for _, t := range g.triples {
		if t.Obj.Type() != rdf.TermIRI || t.Subj.Type() != rdf.TermIRI {
			continue
		}
		if g.Resolve(t.Pred.String()) != predicate || g.Resolve(t.Subj.String()) != subject {
			continue
		}
		out = append(out, g.Resolve(t.Obj.String()))
	}
	return out
}

// FirstObject returns the first IRI object for subject and predicate.
func (g *Graph) FirstObject(subject, predicate string) (string, bool) {
	objs := g.Objects(subject, predicate)
	if len(objs) == 0 {
		return "", false
	}
	return objs[0], true
}

// Resolve makes iri absolute against the document URL.
// Absolute IRIs are returned unchanged.
func (g *Graph) Resolve(iri string) string {
	return resolveAgainst(g.base, iri)
}

func resolveAgainst(base *url.URL, iri string) string {
	ref, err := url.Parse(iri)
	if err != nil || ref.IsAbs() || base == nil {
		return iri
	}
	return base.ResolveReference(ref).String()
}
