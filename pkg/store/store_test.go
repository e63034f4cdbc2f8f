package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nova.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func parsedEvent(id, sourceTime string) event.Event {
	return event.Event{
		Header: event.Header{
			EventID: id, ScopeID: "scope-1", Lane: event.LaneParsed,
			SourceTruthTime: sourceTime, CanonicalTruthTime: sourceTime,
			Identity: event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		Parsed: &event.ParsedPayload{MessageType: "Telemetry", SchemaVersion: 1, Payload: map[string]any{"x": 1}},
	}
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	out, err := s.Insert(ctx, parsedEvent("e1", "2026-01-01T00:00:00Z"))
	require.NoError(t, err)
	require.True(t, out.Inserted)
	require.Equal(t, int64(1), out.IngestSeq)

	events, err := s.Query(ctx, store.Spec{Lanes: []event.Lane{event.LaneParsed}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "e1", events[0].EventID)
	require.Equal(t, map[string]any{"x": float64(1)}, events[0].Parsed.Payload)
}

func TestInsertDedupeIsSilent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	e := parsedEvent("dup-1", "2026-01-01T00:00:00Z")

	out1, err := s.Insert(ctx, e)
	require.NoError(t, err)
	require.True(t, out1.Inserted)

	out2, err := s.Insert(ctx, e)
	require.NoError(t, err)
	require.False(t, out2.Inserted)

	events, err := s.Query(ctx, store.Spec{Lanes: []event.Lane{event.LaneParsed}})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestQueryOrdersByGlobalTruthOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, parsedEvent("e-later", "2026-01-01T00:00:02Z"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, parsedEvent("e-earlier", "2026-01-01T00:00:01Z"))
	require.NoError(t, err)

	events, err := s.Query(ctx, store.Spec{Timebase: ordering.TimebaseSource})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "e-earlier", events[0].EventID)
	require.Equal(t, "e-later", events[1].EventID)
}

func TestQueryParityModeOrdersByIngestSequence(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, parsedEvent("e-first-in", "2026-01-01T00:00:05Z"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, parsedEvent("e-second-in", "2026-01-01T00:00:01Z"))
	require.NoError(t, err)

	events, err := s.Query(ctx, store.Spec{ParityMode: true})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "e-first-in", events[0].EventID)
	require.Equal(t, "e-second-in", events[1].EventID)
}

func commandRequest(id, requestID string) event.Event {
	return event.Event{
		Header: event.Header{
			EventID: id, ScopeID: "scope-1", Lane: event.LaneCommand,
			SourceTruthTime: "2026-01-01T00:00:00Z", CanonicalTruthTime: "2026-01-01T00:00:00Z",
			Identity: event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		Command: &event.CommandPayload{
			MessageType: event.MessageTypeCommandRequest, CommandID: "cmd-" + id,
			RequestID: requestID, TargetID: "target", CommandType: "Reboot",
			Payload: map[string]any{},
		},
	}
}

func TestCommandRequestIDUniqueAcrossDifferentEventIDs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	out1, err := s.Insert(ctx, commandRequest("c1", "req-1"))
	require.NoError(t, err)
	require.True(t, out1.Inserted)

	// Different eventId, same requestId: the conditional unique index on
	// request_id must reject this at the lane-table insert, surfacing as
	// a store error distinct from ordinary eventId dedupe.
	_, err = s.Insert(ctx, commandRequest("c2", "req-1"))
	require.Error(t, err)
}

func TestCheckpointSucceeds(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Checkpoint(context.Background()))
}
