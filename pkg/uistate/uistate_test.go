package uistate_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/peakyragnar/nova/pkg/uistate"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, checkpointSeconds, historySeconds int) (*uistate.Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "nova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	q := query.New(s)
	return uistate.New(q, time.Duration(checkpointSeconds)*time.Second, time.Duration(historySeconds)*time.Second), s
}

func uiUpdate(id, sourceTime string, data map[string]any) event.Event {
	return event.Event{
		Header: event.Header{
			EventID: id, ScopeID: "scope-1", Lane: event.LaneUI,
			SourceTruthTime: sourceTime, CanonicalTruthTime: sourceTime,
			Identity: event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		UI: &event.UIPayload{MessageType: event.MessageTypeUiUpdate, ViewID: "view1", ManifestID: "m1", ManifestVersion: "v1", Data: data},
	}
}

func TestApplyFoldsPartialUpsert(t *testing.T) {
	m, _ := newManager(t, 500, 120)

	cp1, err := m.Apply(uiUpdate("e1", "2026-01-01T00:00:01Z", map[string]any{"a": 1.0, "b": 2.0}))
	require.NoError(t, err)
	require.NotNil(t, cp1, "first update in a bucket must emit a checkpoint")
	require.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, cp1.UI.Data)

	cp2, err := m.Apply(uiUpdate("e2", "2026-01-01T00:00:02Z", map[string]any{"a": nil}))
	require.NoError(t, err)
	require.Nil(t, cp2, "second update in same bucket must not re-emit a checkpoint")
}

func TestApplyEmitsOneCheckpointPerBucket(t *testing.T) {
	m, _ := newManager(t, 500, 120)

	cp1, err := m.Apply(uiUpdate("e1", "2026-01-01T00:00:01Z", map[string]any{"a": 1.0}))
	require.NoError(t, err)
	require.NotNil(t, cp1)

	cp2, err := m.Apply(uiUpdate("e2", "2026-01-01T00:08:30Z", map[string]any{"b": 2.0}))
	require.NoError(t, err)
	require.NotNil(t, cp2, "crossing into a new 500s bucket must emit a new checkpoint")
	require.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, cp2.UI.Data)
}

func TestApplyIgnoresNonUiUpdateEvents(t *testing.T) {
	m, _ := newManager(t, 500, 120)
	e := uiUpdate("e1", "2026-01-01T00:00:00Z", map[string]any{"a": 1.0})
	e.UI.MessageType = event.MessageTypeUiCheckpoint
	cp, err := m.Apply(e)
	require.NoError(t, err)
	require.Nil(t, cp)
}

func TestStateAtColdSeekWithinHistoryTimeout(t *testing.T) {
	m, s := newManager(t, 500, 120)
	ctx := context.Background()

	e := uiUpdate("e1", "2026-01-01T00:00:10Z", map[string]any{"a": 1.0})
	_, err := s.Insert(ctx, e)
	require.NoError(t, err)

	key := uistate.Key{ScopeID: "scope-1", SystemID: "sys", ContainerID: "cont", UniqueID: "uid", ViewID: "view1", ManifestID: "m1", ManifestVersion: "v1"}
	at, err := time.Parse(time.RFC3339, "2026-01-01T00:00:20Z")
	require.NoError(t, err)

	data, found, err := m.StateAt(ctx, key, at)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, map[string]any{"a": 1.0}, data)
}
