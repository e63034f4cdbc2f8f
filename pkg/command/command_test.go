package command_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/peakyragnar/nova/pkg/command"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/ingest"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, dispatch command.Dispatcher) (*command.Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "nova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	p := ingest.New(s)
	p.Clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	m := command.New(s, p, dispatch)
	m.Clock = p.Clock
	return m, s
}

func baseRequest() command.Request {
	return command.Request{
		RequestID:   "req-1",
		ScopeID:     "scope-1",
		Identity:    event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		TargetID:    "target-1",
		CommandType: "Reboot",
		Payload:     map[string]any{"force": true},
	}
}

func TestSubmitRejectsInReplayMode(t *testing.T) {
	m, _ := newManager(t, func(ctx context.Context, e event.Event) error { return nil })
	_, err := m.Submit(context.Background(), command.TimelineModeReplay, baseRequest())
	require.Error(t, err)
	require.True(t, novaerr.IsKind(err, novaerr.KindReplayBlocked))
}

func TestSubmitRecordsThenDispatches(t *testing.T) {
	var dispatched event.Event
	m, s := newManager(t, func(ctx context.Context, e event.Event) error {
		dispatched = e
		return nil
	})

	ack, err := m.Submit(context.Background(), command.TimelineModeLive, baseRequest())
	require.NoError(t, err)
	require.NotEmpty(t, ack.CommandID)
	require.Equal(t, ack.CommandID, dispatched.Command.CommandID)

	events, err := s.Query(context.Background(), store.Spec{Lanes: []event.Lane{event.LaneCommand}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, event.MessageTypeCommandRequest, events[0].Command.MessageType)
}

func TestSubmitIsIdempotentOnRequestID(t *testing.T) {
	m, _ := newManager(t, func(ctx context.Context, e event.Event) error { return nil })

	first, err := m.Submit(context.Background(), command.TimelineModeLive, baseRequest())
	require.NoError(t, err)

	second, err := m.Submit(context.Background(), command.TimelineModeLive, baseRequest())
	require.NoError(t, err)
	require.Equal(t, first.CommandID, second.CommandID)
}

func TestSubmitRecordsFailureResultOnDispatchError(t *testing.T) {
	dispatchErr := errors.New("producer unreachable")
	m, s := newManager(t, func(ctx context.Context, e event.Event) error { return dispatchErr })

	_, err := m.Submit(context.Background(), command.TimelineModeLive, baseRequest())
	require.Error(t, err)

	events, err := s.Query(context.Background(), store.Spec{Lanes: []event.Lane{event.LaneCommand}})
	require.NoError(t, err)
	require.Len(t, events, 2)

	var sawResult bool
	for _, e := range events {
		if e.Command.MessageType == event.MessageTypeCommandResult {
			sawResult = true
			require.Equal(t, "failure", e.Command.Payload["status"])
		}
	}
	require.True(t, sawResult)
}
