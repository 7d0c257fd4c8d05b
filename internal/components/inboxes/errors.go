package inboxes

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoInbox means discovery completed and found no inbox at all.
	ErrNoInbox = errors.New("no inbox found")

	// ErrInvalidIdentity means the WebID is not an absolute http(s) URL.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// Collaborator operations reported in DiscoveryError.Op.
const (
	OpResolveStorage = "storage"
	OpDiscoverInbox  = "inbox"
)

// DiscoveryError is a per-stage failure: the relation could not be determined
// because of a network, status or parse problem. The aggregator records it and
// continues with the next stage.
type DiscoveryError struct {
	Op     string
	Target string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s discovery at %s: %v", e.Op, e.Target, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NoInboxError is returned together with an empty Result when no stage found an inbox.
type NoInboxError struct {
	WebID string
}

func (e *NoInboxError) Error() string {
	return fmt.Sprintf("no inbox found for %s", e.WebID)
}

// Is makes errors.Is(err, ErrNoInbox) match.
func (e *NoInboxError) Is(target error) bool {
	return target == ErrNoInbox
}

// FaultError means the run could not produce a trustworthy answer: either it
// was aborted by an unexpected error, or it found nothing while some stage failed.
type FaultError struct {
	RunID    string
	Failures []Failure
	Err      error
}

func (e *FaultError) Error() string {
	if e.Err != nil {
		return "inbox discovery failed: " + e.Err.Error()
	}
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Message)
	}
	return "inbox discovery failed: " + strings.Join(msgs, "; ")
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// IsDiscoveryError reports whether err carries a *DiscoveryError.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}
