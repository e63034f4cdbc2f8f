// Package query is NOVA's bounded, side-effect-free read path, per
// spec.md §4.5. Engine holds only a *store.Store reader handle — there
// is no field reachable from its constructor that could call into the
// file writer, the UI-state manager, or the streaming engine, which is
// how "queries must never have side effects" is enforced structurally
// rather than by convention.
package query

import (
	"context"
	"time"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/metrics"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/store"
)

// Spec is re-exported so callers never need to import pkg/store
// directly for the query surface.
type Spec = store.Spec

// Engine runs bounded historical queries.
type Engine struct {
	store *store.Store
}

// New returns an Engine over s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Query validates spec and delegates entirely to the store; no
// post-filter sorting happens here or anywhere else (ordering is the
// store's contract, via pkg/ordering).
func (e *Engine) Query(ctx context.Context, spec Spec) ([]event.Event, error) {
	if spec.StartTime == "" || spec.StopTime == "" {
		return nil, novaerr.Validation("query requires both startTime and stopTime")
	}
	if spec.StartTime > spec.StopTime {
		return nil, novaerr.Validation("startTime %q must not be after stopTime %q", spec.StartTime, spec.StopTime)
	}
	start := time.Now()
	defer func() { metrics.ObserveQueryDuration(time.Since(start)) }()
	return e.store.Query(ctx, spec)
}
