package inboxes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	discovery "github.com/MahdiBaghbani/podinbox-go/internal/components/inboxes"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"
)

// MetricsObserver reports stage durations and run outcomes to m.
// It returns nil when m is nil, which discovery.Observers skips.
func MetricsObserver(m *metrics.Metrics) discovery.Observer {
	if m == nil {
		return nil
	}
	return discovery.ObserverFunc(func(_ context.Context, ev discovery.Event) {
		switch ev.Kind {
		case discovery.EventStage:
			m.RecordStage(string(ev.Stage), ev.Duration, ev.Err != nil)
		case discovery.EventFinished:
			m.RecordRun(string(ev.Outcome))
		}
	})
}

// storeTimeout bounds a single run record write.
const storeTimeout = 2 * time.Second

// RunRecorder writes a store.RunRecord for every run. The record is put once
// when the run starts and replaced when it finishes.
type RunRecorder struct {
	runs store.RunStore
	log  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]*store.RunRecord
}

// NewRunRecorder creates a RunRecorder writing to runs.
func NewRunRecorder(runs store.RunStore, log *slog.Logger) *RunRecorder {
	return &RunRecorder{
		runs:     runs,
		log:      logutil.NoopIfNil(log),
		inFlight: make(map[string]*store.RunRecord),
	}
}

// Observe implements discovery.Observer.
func (rr *RunRecorder) Observe(ctx context.Context, ev discovery.Event) {
	switch ev.Kind {
	case discovery.EventTransition:
		rr.transition(ctx, ev)
	case discovery.EventFinished:
		rr.finish(ctx, ev)
	}
}

func (rr *RunRecorder) transition(ctx context.Context, ev discovery.Event) {
	rr.mu.Lock()
	rec, ok := rr.inFlight[ev.RunID]
	if !ok {
		rec = &store.RunRecord{
			RunID:     ev.RunID,
			WebID:     ev.WebID,
			StartedAt: ev.At.Unix(),
		}
		rr.inFlight[ev.RunID] = rec
	}
	rec.State = string(ev.To)
	var snapshot *store.RunRecord
	if !ok {
		snapshot = rec.Clone()
	}
	rr.mu.Unlock()

	if snapshot != nil {
		rr.put(ctx, snapshot)
	}
}

func (rr *RunRecorder) finish(ctx context.Context, ev discovery.Event) {
	rr.mu.Lock()
	rec, ok := rr.inFlight[ev.RunID]
	delete(rr.inFlight, ev.RunID)
	rr.mu.Unlock()

	if !ok {
		rec = &store.RunRecord{RunID: ev.RunID, WebID: ev.WebID, StartedAt: ev.At.Unix()}
	}
	rec.Outcome = string(ev.Outcome)
	rec.FinishedAt = ev.At.Unix()

	failures := failuresOf(ev)
	if len(failures) > 0 {
		rec.Failures = make([]store.RunFailure, 0, len(failures))
		for _, f := range failures {
			rec.Failures = append(rec.Failures, store.RunFailure{
				Stage:   string(f.Stage),
				Target:  f.Target,
				Message: f.Message,
			})
		}
	}
	if ev.Result != nil {
		rec.InboxCount = len(ev.Result.Inboxes)
	}
	if sig := discovery.SignalFor(ev.Err, nil); sig != nil {
		rec.SignalKind = string(sig.Kind)
	}

	rr.put(ctx, rec)
}

func failuresOf(ev discovery.Event) []discovery.Failure {
	if ev.Result != nil {
		return ev.Result.Failures
	}
	var fe *discovery.FaultError
	if errors.As(ev.Err, &fe) {
		return fe.Failures
	}
	return nil
}

func (rr *RunRecorder) put(ctx context.Context, rec *store.RunRecord) {
	// A cancelled request still gets its record.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := rr.runs.PutRun(ctx, rec); err != nil {
		rr.log.Warn("failed to record discovery run", "run_id", rec.RunID, "error", err)
	}
}
