// Package uistate reconstructs and incrementally maintains rendered UI
// state from UiUpdate deltas, per spec.md §4.7. It generalizes the
// teacher's pkg/core.RunState: a sync.RWMutex-guarded map of per-key
// accumulators, warm-cached in-process and safe to evict and rebuild
// from the store at any time.
package uistate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
)

// Key identifies one accumulator, per spec.md §4.7:
// (scopeId, systemId, containerId, uniqueId, viewId, manifestId, manifestVersion).
type Key struct {
	ScopeID         string
	SystemID        string
	ContainerID     string
	UniqueID        string
	ViewID          string
	ManifestID      string
	ManifestVersion string
}

func keyOf(e event.Event) Key {
	return Key{
		ScopeID: e.ScopeID, SystemID: e.SystemID, ContainerID: e.ContainerID, UniqueID: e.UniqueID,
		ViewID: e.UI.ViewID, ManifestID: e.UI.ManifestID, ManifestVersion: e.UI.ManifestVersion,
	}
}

// Accumulator folds UiUpdate deltas into a live data map (partial
// upsert: nil removes a key, any other value sets it) and tracks which
// checkpoint buckets it has already emitted.
type Accumulator struct {
	mu              sync.Mutex
	data            map[string]any
	emittedBuckets  map[int64]struct{}
}

func newAccumulator() *Accumulator {
	return &Accumulator{
		data:           make(map[string]any),
		emittedBuckets: make(map[int64]struct{}),
	}
}

func (a *Accumulator) apply(delta map[string]any) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range delta {
		if v == nil {
			delete(a.data, k)
			continue
		}
		a.data[k] = v
	}
	snapshot := make(map[string]any, len(a.data))
	for k, v := range a.data {
		snapshot[k] = v
	}
	return snapshot
}

// markBucket reports whether bucketStart is newly observed for this
// accumulator (true the first time, false on every later call for the
// same bucket), per spec.md §4.7's "at most one checkpoint per bucket
// per accumulator".
func (a *Accumulator) markBucket(bucketStart int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, seen := a.emittedBuckets[bucketStart]; seen {
		return false
	}
	a.emittedBuckets[bucketStart] = struct{}{}
	return true
}

// Manager is NOVA's in-process UI-state accumulator cache.
type Manager struct {
	mu             sync.RWMutex
	accumulators   map[Key]*Accumulator
	bucketSeconds  int64
	historyTimeout time.Duration
	query          *query.Engine
}

// New returns a Manager. checkpointInterval and historyTimeout are
// spec.md §6's ui.checkpointIntervalSeconds/ui.historyTimeoutSeconds.
func New(q *query.Engine, checkpointInterval time.Duration, historyTimeout time.Duration) *Manager {
	return &Manager{
		accumulators:   make(map[Key]*Accumulator),
		bucketSeconds:  int64(checkpointInterval.Seconds()),
		historyTimeout: historyTimeout,
		query:          q,
	}
}

func (m *Manager) accumulatorFor(key Key) *Accumulator {
	m.mu.RLock()
	acc, ok := m.accumulators[key]
	m.mu.RUnlock()
	if ok {
		return acc
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accumulators[key]; ok {
		return acc
	}
	acc = newAccumulator()
	m.accumulators[key] = acc
	return acc
}

// bucketStart computes the deterministic bucket boundary for sourceTime
// per spec.md §4.7: the timeline time's bucket, never wall clock or
// arrival order, so replaying history yields the same checkpoints.
func (m *Manager) bucketStart(sourceTime time.Time) int64 {
	day := time.Date(sourceTime.Year(), sourceTime.Month(), sourceTime.Day(), 0, 0, 0, 0, time.UTC)
	secondsOfDay := sourceTime.Unix() - day.Unix()
	bucketOfDay := (secondsOfDay / m.bucketSeconds) * m.bucketSeconds
	return day.Unix() + bucketOfDay
}

// Apply folds a UiUpdate event into its accumulator and returns a
// derived UiCheckpoint envelope when e crosses into a new bucket for
// the first time, for the ingest pipeline to re-ingest. Non-UiUpdate
// events are ignored.
func (m *Manager) Apply(e event.Event) (*event.Event, error) {
	if e.Lane != event.LaneUI || e.UI == nil || e.UI.MessageType != event.MessageTypeUiUpdate {
		return nil, nil
	}

	sourceTime, err := time.Parse(time.RFC3339, e.SourceTruthTime)
	if err != nil {
		return nil, novaerr.Validation("uistate: parse sourceTruthTime %q: %v", e.SourceTruthTime, err)
	}

	key := keyOf(e)
	acc := m.accumulatorFor(key)
	snapshot := acc.apply(e.UI.Data)

	bucket := m.bucketStart(sourceTime)
	if !acc.markBucket(bucket) {
		return nil, nil
	}

	checkpointTime := time.Unix(bucket, 0).UTC().Format(time.RFC3339)
	checkpoint := event.Event{
		Header: event.Header{
			ScopeID:            e.ScopeID,
			Lane:               event.LaneUI,
			SourceTruthTime:    checkpointTime,
			CanonicalTruthTime: e.CanonicalTruthTime,
			Identity:           e.Identity,
		},
		UI: &event.UIPayload{
			MessageType:     event.MessageTypeUiCheckpoint,
			ViewID:          key.ViewID,
			ManifestID:      key.ManifestID,
			ManifestVersion: key.ManifestVersion,
			Data:            snapshot,
		},
	}
	return &checkpoint, nil
}

// StateAt reconstructs the UI state at time t via checkpoint + bounded
// history replay, per spec.md §4.7 steps:
//  1. Look for the latest UiCheckpoint at or before t.
//  2. If found, base state = its Data, base time = its sourceTruthTime.
//  3. If not found, base state = empty, base time = t - historyTimeout.
//  4. Replay UiUpdate events in (base time, t] in order, folding deltas.
func (m *Manager) StateAt(ctx context.Context, key Key, t time.Time) (map[string]any, bool, error) {
	tStr := t.UTC().Format(time.RFC3339)

	checkpoints, err := m.query.Query(ctx, query.Spec{
		StartTime:   epoch,
		StopTime:    tStr,
		Timebase:    ordering.TimebaseSource,
		ScopeID:     key.ScopeID,
		Lanes:       []event.Lane{event.LaneUI},
		SystemID:    key.SystemID,
		ContainerID: key.ContainerID,
		UniqueID:    key.UniqueID,
		MessageType: event.MessageTypeUiCheckpoint,
		ViewID:      key.ViewID,
		ManifestID:  key.ManifestID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("uistate: query checkpoints: %w", err)
	}

	base := make(map[string]any)
	baseTime := t.Add(-m.historyTimeout)
	found := false
	if len(checkpoints) > 0 {
		latest := checkpoints[len(checkpoints)-1]
		for k, v := range latest.UI.Data {
			base[k] = v
		}
		parsed, err := time.Parse(time.RFC3339, latest.SourceTruthTime)
		if err != nil {
			return nil, false, fmt.Errorf("uistate: parse checkpoint time: %w", err)
		}
		baseTime = parsed
		found = true
	}

	updates, err := m.query.Query(ctx, query.Spec{
		StartTime:   baseTime.UTC().Format(time.RFC3339),
		StopTime:    tStr,
		Timebase:    ordering.TimebaseSource,
		ScopeID:     key.ScopeID,
		Lanes:       []event.Lane{event.LaneUI},
		SystemID:    key.SystemID,
		ContainerID: key.ContainerID,
		UniqueID:    key.UniqueID,
		MessageType: event.MessageTypeUiUpdate,
		ViewID:      key.ViewID,
		ManifestID:  key.ManifestID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("uistate: query updates: %w", err)
	}

	for _, u := range updates {
		if ut, err := time.Parse(time.RFC3339, u.SourceTruthTime); err == nil && !ut.After(baseTime) {
			continue
		}
		for k, v := range u.UI.Data {
			if v == nil {
				delete(base, k)
				continue
			}
			base[k] = v
		}
	}

	return base, found || len(updates) > 0, nil
}

const epoch = "0001-01-01T00:00:00Z"
