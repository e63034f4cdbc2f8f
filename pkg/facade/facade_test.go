package facade_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/peakyragnar/nova/pkg/command"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/export"
	"github.com/peakyragnar/nova/pkg/facade"
	"github.com/peakyragnar/nova/pkg/filewriter"
	"github.com/peakyragnar/nova/pkg/ingest"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/peakyragnar/nova/pkg/stream"
	"github.com/stretchr/testify/require"
)

func newFacade(t *testing.T, mode command.TimelineMode) (*facade.Facade, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "nova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	notifier := stream.NewNotifier()
	p := ingest.New(s)
	p.Clock = clock
	p.Notifier = notifier

	q := query.New(s)
	reg := filewriter.NewRegistry()
	exp := export.New(q, reg, filepath.Join(t.TempDir(), "exports"), clock)
	cmdMgr := command.New(s, p, func(ctx context.Context, e event.Event) error { return nil })
	cmdMgr.Clock = clock

	return &facade.Facade{
		Query:     q,
		StreamMgr: stream.NewManager(),
		Notifier:  notifier,
		Command:   cmdMgr,
		Export:    exp,
		Ingest:    p,
		Mode:      func() command.TimelineMode { return mode },
	}, s
}

func parsedEvent(t *testing.T, sourceTime string) event.Event {
	t.Helper()
	return event.Event{
		Header: event.Header{
			ScopeID:         "scope-1",
			Lane:            event.LaneParsed,
			SourceTruthTime: sourceTime,
			Identity:        event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		Parsed: &event.ParsedPayload{MessageType: "Telemetry", Payload: map[string]any{"x": 1}},
	}
}

func TestHandleQueryReturnsIngestedEvents(t *testing.T) {
	f, _ := newFacade(t, command.TimelineModeLive)
	ctx := context.Background()

	_, err := f.Ingest.IngestEvent(ctx, parsedEvent(t, "2026-01-01T00:00:00Z"))
	require.NoError(t, err)

	resp, chunks, err := f.Handle(ctx, facade.Request{
		Type: facade.OpQuery,
		Query: &query.Spec{
			ScopeID:   "scope-1",
			Lanes:     []event.Lane{event.LaneParsed},
			StartTime: "2026-01-01T00:00:00Z",
			StopTime:  "2026-01-01T00:00:01Z",
		},
	})
	require.NoError(t, err)
	require.Nil(t, chunks)
	require.Equal(t, facade.RespQueryResult, resp.Type)
	require.Len(t, resp.QueryResult, 1)
}

func TestHandleQueryRejectsMissingSpec(t *testing.T) {
	f, _ := newFacade(t, command.TimelineModeLive)
	resp, _, err := f.Handle(context.Background(), facade.Request{Type: facade.OpQuery})
	require.Error(t, err)
	require.Equal(t, facade.RespError, resp.Type)
	require.True(t, novaerr.IsKind(err, novaerr.KindValidation))
}

func TestHandleStartStreamBoundedReplayThenCancel(t *testing.T) {
	f, _ := newFacade(t, command.TimelineModeLive)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.Ingest.IngestEvent(ctx, parsedEvent(t, "2026-01-01T00:00:00Z"))
	require.NoError(t, err)

	stop := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	resp, chunks, err := f.Handle(ctx, facade.Request{
		Type: facade.OpStartStream,
		Stream: &stream.StartSpec{
			ConnectionID: "conn-1",
			Role:         stream.RoleLeader,
			ScopeID:      "scope-1",
			Filters:      query.Spec{Lanes: []event.Lane{event.LaneParsed}},
			Timebase:     ordering.TimebaseSource,
			StartTime:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			StopTime:     &stop,
			Rate:         1000,
		},
	})
	require.NoError(t, err)
	require.Equal(t, facade.RespStreamStarted, resp.Type)
	require.NotNil(t, chunks)

	var sawEvent, sawDone bool
	timeout := time.After(5 * time.Second)
drain:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				break drain
			}
			if len(chunk.StreamChunk.Events) > 0 {
				sawEvent = true
			}
			if chunk.StreamComplete {
				sawDone = true
			}
		case <-timeout:
			t.Fatal("timed out waiting for stream completion")
		}
	}
	require.True(t, sawEvent)
	require.True(t, sawDone)

	resp, _, err = f.Handle(ctx, facade.Request{
		Type:   facade.OpCancelStream,
		Cancel: &facade.CancelSpec{ConnectionID: "conn-1", Role: stream.RoleLeader},
	})
	require.NoError(t, err)
	require.Equal(t, facade.RespAck, resp.Type)
}

func TestHandleSubmitCommandRejectsInReplayMode(t *testing.T) {
	f, _ := newFacade(t, command.TimelineModeReplay)
	resp, _, err := f.Handle(context.Background(), facade.Request{
		Type: facade.OpSubmitCommand,
		Command: &command.Request{
			RequestID:   "req-1",
			ScopeID:     "scope-1",
			Identity:    event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
			TargetID:    "target-1",
			CommandType: "Reboot",
		},
	})
	require.Error(t, err)
	require.Equal(t, facade.RespError, resp.Type)
	require.True(t, novaerr.IsKind(err, novaerr.KindReplayBlocked))
}

func TestHandleSubmitCommandDispatchesAndAcks(t *testing.T) {
	f, _ := newFacade(t, command.TimelineModeLive)
	resp, chunks, err := f.Handle(context.Background(), facade.Request{
		Type: facade.OpSubmitCommand,
		Command: &command.Request{
			RequestID:   "req-1",
			ScopeID:     "scope-1",
			Identity:    event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
			TargetID:    "target-1",
			CommandType: "Reboot",
		},
	})
	require.NoError(t, err)
	require.Nil(t, chunks)
	require.Equal(t, facade.RespAck, resp.Type)
	require.NotEmpty(t, resp.Ack.CommandID)
}

func TestHandleExportAndListExports(t *testing.T) {
	f, _ := newFacade(t, command.TimelineModeLive)
	ctx := context.Background()

	_, err := f.Ingest.IngestEvent(ctx, parsedEvent(t, "2026-01-01T00:00:00Z"))
	require.NoError(t, err)

	resp, _, err := f.Handle(ctx, facade.Request{
		Type: facade.OpExport,
		Export: &export.Spec{
			ScopeID:   "scope-1",
			StartTime: "2026-01-01T00:00:00Z",
			StopTime:  "2026-01-01T00:00:01Z",
		},
	})
	require.NoError(t, err)
	require.Equal(t, facade.RespExportResult, resp.Type)
	require.NotEmpty(t, resp.ExportManifest.ExportID)

	resp, _, err = f.Handle(ctx, facade.Request{Type: facade.OpListExports})
	require.NoError(t, err)
	require.Equal(t, facade.RespExportList, resp.Type)
	require.Len(t, resp.Exports, 1)
}

func TestHandleIngestMetadata(t *testing.T) {
	f, s := newFacade(t, command.TimelineModeLive)
	e := event.Event{
		Header: event.Header{
			ScopeID:         "scope-1",
			Lane:            event.LaneMetadata,
			SourceTruthTime: "2026-01-01T00:00:00Z",
		},
		Metadata: &event.MetadataPayload{
			MessageType:   "ScopeRename",
			EffectiveTime: "2026-01-01T00:00:00Z",
			ManifestID:    "manifest-1",
			Payload:       map[string]any{"name": "renamed"},
		},
	}

	resp, _, err := f.Handle(context.Background(), facade.Request{Type: facade.OpIngestMetadata, Metadata: &e})
	require.NoError(t, err)
	require.Equal(t, facade.RespAck, resp.Type)

	events, err := s.Query(context.Background(), store.Spec{
		Lanes:     []event.Lane{event.LaneMetadata},
		StartTime: "2026-01-01T00:00:00Z",
		StopTime:  "2026-01-01T00:00:01Z",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestHandleUnknownOperation(t *testing.T) {
	f, _ := newFacade(t, command.TimelineModeLive)
	resp, _, err := f.Handle(context.Background(), facade.Request{Type: "bogus"})
	require.Error(t, err)
	require.Equal(t, facade.RespError, resp.Type)
}

// TestChannelServeRoundTripsQueryOverNetPipe exercises the
// line-delimited JSON framing end to end over a real net.Conn pair,
// mirroring the teacher's mcpstdio proxy's readFromAgent/dispatch loop.
func TestChannelServeRoundTripsQueryOverNetPipe(t *testing.T) {
	f, _ := newFacade(t, command.TimelineModeLive)
	ctx := context.Background()
	_, err := f.Ingest.IngestEvent(ctx, parsedEvent(t, "2026-01-01T00:00:00Z"))
	require.NoError(t, err)

	serverConn, clientConn := net.Pipe()
	ch := &facade.Channel{Facade: f, Conn: serverConn}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ch.Serve(serveCtx) }()

	reqLine := `{"type":"query","requestId":"r1","query":{"ScopeID":"scope-1","Lanes":["parsed"],"StartTime":"2026-01-01T00:00:00Z","StopTime":"2026-01-01T00:00:01Z"}}` + "\n"
	_, err = clientConn.Write([]byte(reqLine))
	require.NoError(t, err)

	reader := bufio.NewReader(clientConn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)

	var resp struct {
		Type        string        `json:"type"`
		RequestID   string        `json:"requestId"`
		QueryResult []event.Event `json:"queryResult"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	require.Equal(t, facade.RespQueryResult, resp.Type)
	require.Equal(t, "r1", resp.RequestID)
	require.Len(t, resp.QueryResult, 1)

	clientConn.Close()
	cancel()
	<-done
}
