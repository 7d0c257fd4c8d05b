// Package store provides persistence primitives and driver abstractions for
// discovery run records.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, open files, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string

	RunStore
}

// RunStore persists discovery run records. Records are diagnostics only;
// discovery never reads them back to answer a request.
type RunStore interface {
	// PutRun creates or replaces the record with the same RunID.
	PutRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	// ListRuns returns the newest runs first. An empty webID lists all runs.
	ListRuns(ctx context.Context, webID string, limit int) ([]*RunRecord, error)
}

// RunRecord is the stored summary of one discovery run.
type RunRecord struct {
	RunID      string       `json:"run_id" gorm:"primaryKey"`
	WebID      string       `json:"webid" gorm:"index"`
	State      string       `json:"state"`   // last state reached: done, failed, or an in-flight state
	Outcome    string       `json:"outcome"` // found, no_inbox, fault; empty while running
	InboxCount int          `json:"inbox_count"`
	Failures   []RunFailure `json:"failures,omitempty" gorm:"serializer:json"`
	SignalKind string       `json:"signal_kind,omitempty"`
	StartedAt  int64        `json:"started_at" gorm:"index"`
	FinishedAt int64        `json:"finished_at,omitempty"`
}

// RunFailure is a stage failure kept with a run record.
type RunFailure struct {
	Stage   string `json:"stage"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

// Clone returns a deep copy of the record.
func (r *RunRecord) Clone() *RunRecord {
	cp := *r
	if r.Failures != nil {
		cp.Failures = append([]RunFailure(nil), r.Failures...)
	}
	return &cp
}
