package stream_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/peakyragnar/nova/pkg/stream"
	"github.com/stretchr/testify/require"
)

func newQueryEngine(t *testing.T) (*query.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "nova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return query.New(s), s
}

func parsedAt(id, sourceTime string) event.Event {
	return event.Event{
		Header: event.Header{
			EventID: id, ScopeID: "scope-1", Lane: event.LaneParsed,
			SourceTruthTime: sourceTime, CanonicalTruthTime: sourceTime,
			Identity: event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		Parsed: &event.ParsedPayload{MessageType: "Telemetry", SchemaVersion: 1, Payload: map[string]any{"n": 1}},
	}
}

func TestCursorBoundedForwardReplayEmitsAllWindowsThenDone(t *testing.T) {
	q, s := newQueryEngine(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, parsedAt("e1", "2026-01-01T00:00:00Z"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, parsedAt("e2", "2026-01-01T00:00:02Z"))
	require.NoError(t, err)

	stop := time.Date(2026, 1, 1, 0, 0, 3, 0, time.UTC)
	c := &stream.Cursor{
		Query:             q,
		ScopeID:           "scope-1",
		StartTime:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		StopTime:          &stop,
		Rate:              1000,
		PlaybackRequestID: "req-1",
		WindowDuration:    time.Second,
	}

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	chunks, err := c.Run(runCtx)
	require.NoError(t, err)

	var all []event.Event
	var sawDone bool
	for chunk := range chunks {
		require.Equal(t, "req-1", chunk.PlaybackRequestID)
		all = append(all, chunk.Events...)
		if chunk.Done {
			sawDone = true
		}
	}
	require.True(t, sawDone)
	require.Len(t, all, 2)
	require.Equal(t, "e1", all[0].EventID)
	require.Equal(t, "e2", all[1].EventID)
}

func TestCursorPausedEmitsNothingUntilCancelled(t *testing.T) {
	q, _ := newQueryEngine(t)
	c := &stream.Cursor{
		Query:             q,
		ScopeID:           "scope-1",
		StartTime:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Rate:              0,
		PlaybackRequestID: "req-2",
	}

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := c.Run(ctx)
	require.NoError(t, err)

	cancel()
	for range chunks {
		t.Fatal("paused cursor must not emit any chunk")
	}
}

func TestCursorLiveFollowEmitsNewlyIngestedEvents(t *testing.T) {
	q, s := newQueryEngine(t)
	notifier := stream.NewNotifier()

	c := &stream.Cursor{
		Query:             q,
		Notify:            notifier,
		ScopeID:           "scope-1",
		StartTime:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Rate:              1,
		PlaybackRequestID: "req-3",
		WindowDuration:    50 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	chunks, err := c.Run(ctx)
	require.NoError(t, err)

	_, err = s.Insert(context.Background(), parsedAt("e1", "2026-01-01T00:00:00Z"))
	require.NoError(t, err)
	notifier.Notify("scope-1")

	var found bool
	for chunk := range chunks {
		for _, e := range chunk.Events {
			if e.EventID == "e1" {
				found = true
			}
		}
		if found {
			cancel()
		}
	}
	require.True(t, found)
}
