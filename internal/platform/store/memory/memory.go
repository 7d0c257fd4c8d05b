// Package memory implements an in-process run store. Records are lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"
)

// DefaultMaxRuns is the number of records kept when the config sets none.
const DefaultMaxRuns = 1000

func init() {
	store.Register("memory", NewDriver)
}

// Driver keeps run records in a map, evicting the oldest when full.
type Driver struct {
	mu      sync.RWMutex
	runs    map[string]*store.RunRecord
	order   []string // insertion order, for eviction
	maxRuns int
	closed  bool
}

// NewDriver creates a new memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	maxRuns := DefaultMaxRuns
	if cfg != nil && cfg.MaxRuns > 0 {
		maxRuns = cfg.MaxRuns
	}
	return &Driver{
		runs:    make(map[string]*store.RunRecord),
		maxRuns: maxRuns,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "memory"
}

// Init is a no-op.
func (d *Driver) Init(ctx context.Context) error {
	return nil
}

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// PutRun creates or replaces a run record.
func (d *Driver) PutRun(ctx context.Context, run *store.RunRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	if _, exists := d.runs[run.RunID]; !exists {
		d.order = append(d.order, run.RunID)
	}
	d.runs[run.RunID] = run.Clone()

	for len(d.order) > d.maxRuns {
		delete(d.runs, d.order[0])
		d.order = d.order[1:]
	}
	return nil
}

// GetRun retrieves a run record by ID.
func (d *Driver) GetRun(ctx context.Context, runID string) (*store.RunRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	run, ok := d.runs[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return run.Clone(), nil
}

// ListRuns returns runs newest first.
func (d *Driver) ListRuns(ctx context.Context, webID string, limit int) ([]*store.RunRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}

	var out []*store.RunRecord
	for _, run := range d.runs {
		if webID == "" || run.WebID == webID {
			out = append(out, run.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		// UUIDv7 run IDs sort by time
		return out[i].RunID > out[j].RunID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
