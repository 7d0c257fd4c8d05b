package inboxes

import (
	"context"
	"time"
)

// State is the position of a run in its state machine.
type State string

const (
	StateIdle                   State = "idle"
	StateDiscoveringGlobal      State = "discovering_global"
	StateDiscoveringStorageRoot State = "discovering_storage_root"
	StateDiscoveringAppInbox    State = "discovering_app_inbox"
	StateDone                   State = "done"
	StateFailed                 State = "failed"
)

// Outcome summarizes a finished run.
type Outcome string

const (
	OutcomeFound   Outcome = "found"
	OutcomeNoInbox Outcome = "no_inbox"
	OutcomeFault   Outcome = "fault"
)

// EventKind tells which fields of an Event are set.
type EventKind int

const (
	// EventTransition: From and To.
	EventTransition EventKind = iota
	// EventStage: Stage, Target, Found, Duration and Err.
	EventStage
	// EventFinished: Outcome, Result (nil on fault) and Err.
	EventFinished
)

// Event is delivered to an Observer during a run.
type Event struct {
	Kind  EventKind
	RunID string
	WebID string
	At    time.Time

	From State
	To   State

	Stage    Stage
	Target   string
	Found    bool
	Duration time.Duration

	Outcome Outcome
	Result  *Result

	Err error
}

// Observer receives run events synchronously, in order. Implementations must
// not block; they run on the discovery path.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Observers fans events out to several observers. Nil entries are skipped.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Observe(ctx, ev)
	}
}
