package inboxes

import (
	"errors"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/i18n"
)

// SignalKind distinguishes "nothing to show" from "could not find out".
type SignalKind string

const (
	SignalNoInbox        SignalKind = "no-inbox"
	SignalDiscoveryFault SignalKind = "discovery-fault"
)

// Guidance points the user at a way to fix a recoverable condition.
type Guidance struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Signal is the caller-facing form of a run that produced no list.
type Signal struct {
	Kind     SignalKind `json:"kind"`
	Title    string     `json:"title,omitempty"`
	Message  string     `json:"message"`
	Guidance *Guidance  `json:"guidance,omitempty"`
}

// SignalFor maps an Aggregate error to a Signal. It returns nil for a nil
// error and for ErrInvalidIdentity, which is a caller mistake and not a
// discovery outcome.
func SignalFor(err error, l Labeler) *Signal {
	if err == nil || errors.Is(err, ErrInvalidIdentity) {
		return nil
	}
	if l == nil {
		l = keyLabeler{}
	}

	if errors.Is(err, ErrNoInbox) {
		return &Signal{
			Kind:    SignalNoInbox,
			Title:   l.Label(i18n.KeyNoInboxTitle),
			Message: l.Label(i18n.KeyNoInboxMessage),
			Guidance: &Guidance{
				Label: l.Label(i18n.KeyNoInboxLinkLabel),
				Href:  l.Label(i18n.KeyNoInboxLinkHref),
			},
		}
	}

	return &Signal{
		Kind:    SignalDiscoveryFault,
		Title:   l.Label(i18n.KeyFetchingError),
		Message: err.Error(),
	}
}
