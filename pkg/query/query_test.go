package query_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*query.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "nova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return query.New(s), s
}

func TestQueryRejectsMissingBounds(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Query(context.Background(), query.Spec{StartTime: "2026-01-01T00:00:00Z"})
	require.Error(t, err)
}

func TestQueryRejectsInvertedBounds(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Query(context.Background(), query.Spec{
		StartTime: "2026-01-02T00:00:00Z",
		StopTime:  "2026-01-01T00:00:00Z",
	})
	require.Error(t, err)
}

func TestQueryReturnsBoundedWindow(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()

	in := event.Event{
		Header: event.Header{
			EventID: "in-window", ScopeID: "s", Lane: event.LaneParsed,
			SourceTruthTime: "2026-01-01T00:00:05Z", CanonicalTruthTime: "2026-01-01T00:00:05Z",
			Identity: event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		Parsed: &event.ParsedPayload{MessageType: "Telemetry", SchemaVersion: 1, Payload: map[string]any{}},
	}
	out := in
	out.EventID = "out-of-window"
	out.SourceTruthTime = "2026-01-02T00:00:00Z"
	out.CanonicalTruthTime = "2026-01-02T00:00:00Z"

	_, err := s.Insert(ctx, in)
	require.NoError(t, err)
	_, err = s.Insert(ctx, out)
	require.NoError(t, err)

	events, err := e.Query(ctx, query.Spec{
		StartTime: "2026-01-01T00:00:00Z",
		StopTime:  "2026-01-01T00:00:10Z",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "in-window", events[0].EventID)
}
