package eventid_test

import (
	"testing"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/eventid"
	"github.com/stretchr/testify/require"
)

func parsedEvent(payload map[string]any) event.Event {
	return event.Event{
		Header: event.Header{
			ScopeID:         "scope-1",
			Lane:            event.LaneParsed,
			SourceTruthTime: "2026-01-28T12:00:00Z",
			Identity:        event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"},
		},
		Parsed: &event.ParsedPayload{MessageType: "Telemetry", SchemaVersion: 1, Payload: payload},
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	e1 := parsedEvent(map[string]any{"a": 1, "b": 2})
	e2 := parsedEvent(map[string]any{"b": 2, "a": 1})

	id1, err := eventid.Compute(e1)
	require.NoError(t, err)
	id2, err := eventid.Compute(e2)
	require.NoError(t, err)

	require.Equal(t, id1, id2, "key-order-independent payload must hash identically")
	require.Len(t, id1, 64, "eventId must be 64 lowercase hex characters")
}

func TestComputeDiffersByScope(t *testing.T) {
	e1 := parsedEvent(map[string]any{"a": 1})
	e2 := e1
	e2.ScopeID = "scope-2"

	id1, err := eventid.Compute(e1)
	require.NoError(t, err)
	id2, err := eventid.Compute(e2)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestComputeDiffersByIdentity(t *testing.T) {
	e1 := parsedEvent(map[string]any{"a": 1})
	e2 := e1
	e2.UniqueID = "uid-2"

	id1, _ := eventid.Compute(e1)
	id2, _ := eventid.Compute(e2)
	require.NotEqual(t, id1, id2)
}

func TestRawLaneHashesExactBytes(t *testing.T) {
	e1 := event.Event{
		Header: event.Header{ScopeID: "s", Lane: event.LaneRaw, SourceTruthTime: "t",
			Identity: event.Identity{SystemID: "sys", ContainerID: "cont", UniqueID: "uid"}},
		Raw: &event.RawPayload{Bytes: []byte{0x01, 0x02, 0x03}},
	}
	e2 := e1
	e2.Raw = &event.RawPayload{Bytes: []byte{0x01, 0x02, 0x04}}

	id1, err := eventid.Compute(e1)
	require.NoError(t, err)
	id2, err := eventid.Compute(e2)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestMetadataManifestKey(t *testing.T) {
	e := event.Event{
		Header: event.Header{ScopeID: "s", Lane: event.LaneMetadata, SourceTruthTime: "t"},
		Metadata: &event.MetadataPayload{
			MessageType: event.MessageTypeManifestPublished, EffectiveTime: "t", ManifestID: "m1",
			Payload: map[string]any{"x": 1},
		},
	}
	id, err := eventid.Compute(e)
	require.NoError(t, err)
	require.Len(t, id, 64)
}

func TestVerifyDetectsMismatch(t *testing.T) {
	e := parsedEvent(map[string]any{"a": 1})
	e.EventID = "not-the-real-hash"

	computed, matches, err := eventid.Verify(e)
	require.NoError(t, err)
	require.False(t, matches)
	require.NotEqual(t, e.EventID, computed)
}
