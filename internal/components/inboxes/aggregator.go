package inboxes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/i18n"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/logutil"
)

const tracerName = "github.com/MahdiBaghbani/podinbox-go/internal/components/inboxes"

// Labeler translates label keys. *i18n.Localizer implements it.
type Labeler interface {
	Label(key string) string
}

type keyLabeler struct{}

func (keyLabeler) Label(key string) string { return key }

// Aggregator runs inbox discovery for one WebID at a time. It holds no
// per-run state and is safe for concurrent use.
type Aggregator struct {
	storage   StorageResolver
	inboxes   InboxDiscoverer
	labeler   Labeler
	observer  Observer
	log       *slog.Logger
	sensitive bool
	tracer    trace.Tracer
	newRunID  func() string
	now       func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver sets the observer for run events.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.log = logutil.NoopIfNil(l) }
}

// WithSensitiveLogging logs full WebIDs and locators instead of hosts only.
func WithSensitiveLogging(allow bool) Option {
	return func(a *Aggregator) { a.sensitive = allow }
}

// WithRunIDFunc replaces the UUIDv7 run ID generator.
func WithRunIDFunc(f func() string) Option {
	return func(a *Aggregator) { a.newRunID = f }
}

// NewAggregator creates an Aggregator. A nil labeler returns keys untranslated.
func NewAggregator(storage StorageResolver, inboxes InboxDiscoverer, labeler Labeler, opts ...Option) *Aggregator {
	a := &Aggregator{
		storage:  storage,
		inboxes:  inboxes,
		labeler:  labeler,
		log:      logutil.Noop(),
		tracer:   otel.Tracer(tracerName),
		newRunID: newRunID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.labeler == nil {
		a.labeler = keyLabeler{}
	}
	if a.observer == nil {
		a.observer = Observers()
	}
	return a
}

// WithLabeler returns a copy of the aggregator that labels with l.
func (a *Aggregator) WithLabeler(l Labeler) *Aggregator {
	cp := *a
	if l == nil {
		l = keyLabeler{}
	}
	cp.labeler = l
	return &cp
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// run is the state of one Aggregate call. It never escapes the call.
type run struct {
	id     string
	webID  string
	state  State
	result *Result
}

// Aggregate discovers the global and application inboxes for webID.
//
// On success the Result lists global before application. When nothing was
// found and no stage failed, it returns an empty Result and a *NoInboxError.
// When nothing was found and some stage failed, or when a non-stage error
// (including context cancellation) aborts the run, it returns a *FaultError.
// An invalid webID fails with ErrInvalidIdentity before any stage runs.
func (a *Aggregator) Aggregate(ctx context.Context, webID string) (*Result, error) {
	id, err := NormalizeIdentity(webID)
	if err != nil {
		return nil, err
	}

	r := &run{
		id:     a.newRunID(),
		webID:  id,
		state:  StateIdle,
		result: &Result{Inboxes: []Descriptor{}},
	}
	r.result.RunID = r.id
	r.result.WebID = id

	ctx = appctx.WithRunID(ctx, r.id)
	ctx, span := a.tracer.Start(ctx, "inboxes.Aggregate", trace.WithAttributes(
		attribute.String("podinbox.run_id", r.id),
		attribute.String("podinbox.webid_host", hostOf(id)),
	))
	defer span.End()

	log := a.log
	if l, ok := appctx.LoggerFromContext(ctx); ok {
		log = l
	}
	log = log.With("run_id", r.id)
	if a.sensitive {
		log = log.With("webid", id)
	} else {
		log = log.With("webid_host", hostOf(id))
	}

	res, err := a.execute(ctx, log, r)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("podinbox.inbox_count", len(res.Inboxes)))
		a.finish(ctx, r, OutcomeFound, res, nil)
		return res, nil
	case errors.Is(err, ErrNoInbox):
		a.finish(ctx, r, OutcomeNoInbox, res, err)
		return res, err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("inbox discovery failed", "error", err)
		a.finish(ctx, r, OutcomeFault, nil, err)
		return nil, err
	}
}

func (a *Aggregator) execute(ctx context.Context, log *slog.Logger, r *run) (*Result, error) {
	a.transition(ctx, r, StateDiscoveringGlobal)
	global, found, err := a.stage(ctx, log, r, StageGlobal, r.webID, a.inboxes.DiscoverInbox)
	if err != nil {
		return nil, a.abort(r, err)
	}
	if found {
		r.result.Inboxes = append(r.result.Inboxes, a.descriptor(global, i18n.KeyGlobalInbox))
	}

	a.transition(ctx, r, StateDiscoveringStorageRoot)
	root, found, err := a.stage(ctx, log, r, StageStorage, r.webID, a.storage.ResolveStorageRoot)
	if err != nil {
		return nil, a.abort(r, err)
	}

	if found {
		a.transition(ctx, r, StateDiscoveringAppInbox)
		settings := root + SettingsDocument
		app, found, err := a.stage(ctx, log, r, StageApp, settings, a.inboxes.DiscoverInbox)
		if err != nil {
			return nil, a.abort(r, err)
		}
		if found {
			r.result.Inboxes = append(r.result.Inboxes, a.descriptor(app, i18n.KeyAppInbox))
		}
	}

	if len(r.result.Inboxes) > 0 {
		a.transition(ctx, r, StateDone)
		return r.result, nil
	}

	if len(r.result.Failures) > 0 {
		// Nothing found but something could not be checked: not a trustworthy "no inbox".
		a.transition(ctx, r, StateFailed)
		return nil, &FaultError{RunID: r.id, Failures: r.result.Failures}
	}

	a.transition(ctx, r, StateDone)
	return r.result, &NoInboxError{WebID: r.webID}
}

// stage runs one collaborator call. A *DiscoveryError is recorded as a failure
// and reported as not found; any other error is returned and aborts the run.
func (a *Aggregator) stage(
	ctx context.Context,
	log *slog.Logger,
	r *run,
	stage Stage,
	target string,
	call func(context.Context, string) (string, bool, error),
) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	ctx, span := a.tracer.Start(ctx, "inboxes.stage."+string(stage), trace.WithAttributes(
		attribute.String("podinbox.stage", string(stage)),
		attribute.String("podinbox.target_host", hostOf(target)),
	))
	defer span.End()

	logTarget := hostOf(target)
	if a.sensitive {
		logTarget = target
	}

	start := a.now()
	value, found, err := call(ctx, target)
	elapsed := a.now().Sub(start)

	a.observer.Observe(ctx, Event{
		Kind:     EventStage,
		RunID:    r.id,
		WebID:    r.webID,
		At:       a.now(),
		Stage:    stage,
		Target:   target,
		Found:    found && err == nil,
		Duration: elapsed,
		Err:      err,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var de *DiscoveryError
		if !errors.As(err, &de) {
			return "", false, err
		}
		log.Warn("discovery stage failed", "stage", stage, "target", logTarget, "error", err)
		r.result.Failures = append(r.result.Failures, Failure{
			Stage:   stage,
			Target:  target,
			Message: err.Error(),
		})
		return "", false, nil
	}

	span.SetAttributes(attribute.Bool("podinbox.found", found))
	log.Debug("discovery stage finished", "stage", stage, "target", logTarget, "found", found, "duration", elapsed)
	return value, found, nil
}

func (a *Aggregator) descriptor(path, labelKey string) Descriptor {
	return Descriptor{
		Path:      path,
		InboxName: a.labeler.Label(labelKey),
		Shape:     ShapeDefault,
	}
}

func (a *Aggregator) abort(r *run, err error) error {
	// Partial results are discarded.
	r.result = nil
	return &FaultError{RunID: r.id, Err: err}
}

func (a *Aggregator) transition(ctx context.Context, r *run, to State) {
	from := r.state
	r.state = to
	a.observer.Observe(ctx, Event{
		Kind:  EventTransition,
		RunID: r.id,
		WebID: r.webID,
		At:    a.now(),
		From:  from,
		To:    to,
	})
}

func (a *Aggregator) finish(ctx context.Context, r *run, outcome Outcome, res *Result, err error) {
	if r.state != StateDone && r.state != StateFailed {
		a.transition(ctx, r, StateFailed)
	}
	a.observer.Observe(ctx, Event{
		Kind:    EventFinished,
		RunID:   r.id,
		WebID:   r.webID,
		At:      a.now(),
		Outcome: outcome,
		Result:  res,
		Err:     err,
	})
}
