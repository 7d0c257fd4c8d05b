package linkeddata

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the document does not exist (404 or 410).
	ErrNotFound = errors.New("document not found")

	// ErrParse means the document body is not valid RDF.
	ErrParse = errors.New("document is not valid RDF")

	// ErrUnsupportedMediaType means the server answered with a representation we cannot read.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// StatusError is returned for non-2xx responses other than 404/410.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}
