package stream

import (
	"context"
	"time"

	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
)

// StartSpec is the caller-facing description of a cursor to start,
// used by pkg/facade's startStream/setPlaybackRate operations. A rate
// change or seek is just a fresh StartSpec with a new
// PlaybackRequestID: Manager.Start's fencing takes care of cancelling
// whatever cursor previously held the (ConnectionID, Role) key.
type StartSpec struct {
	ConnectionID string
	Role         Role

	ScopeID  string
	Filters  query.Spec
	Timebase ordering.Timebase

	StartTime time.Time
	StopTime  *time.Time
	Rate      float64

	PlaybackRequestID string
	WindowDuration    time.Duration
}

// StartFromSpec builds a Cursor from spec and starts it under mgr's
// fencing for spec.ConnectionID/spec.Role.
func (m *Manager) StartFromSpec(ctx context.Context, q *query.Engine, notify *Notifier, spec StartSpec) (<-chan Chunk, context.CancelFunc, error) {
	c := &Cursor{
		Query:             q,
		Notify:            notify,
		ScopeID:           spec.ScopeID,
		Filters:           spec.Filters,
		Timebase:          spec.Timebase,
		StartTime:         spec.StartTime,
		StopTime:          spec.StopTime,
		Rate:              spec.Rate,
		PlaybackRequestID: spec.PlaybackRequestID,
		WindowDuration:    spec.WindowDuration,
	}
	return m.Start(ctx, spec.ConnectionID, spec.Role, c)
}
