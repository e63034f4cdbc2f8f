// Package event defines the five-lane truth-event model and its common
// identity header, per Interface-Pack §3.
//
// PURPOSE IN NOVA:
// Every producer-emitted fact that crosses into the store is one of five
// lanes sharing a common header:
//
//	raw      opaque bytes preserving exact frame boundaries
//	parsed   structured, semantically named messages
//	ui       partial-upsert UI state deltas and checkpoints
//	command  request/progress/result correlation for dispatched commands
//	metadata producer/driver/manifest/chat facts
//
// Deserialization is routed by the Lane field into one of five payload
// structs, the idiomatic Go answer to dynamically-typed event dicts: a
// tagged variant (Header + an any-typed, Lane-resolved Payload) rather
// than five unrelated top-level types, so every read path can handle
// "an event" uniformly and only switch on Lane where it actually matters
// (ordering, driver selection, lane-specific filtering).
package event

import "fmt"

// Lane is one of the five top-level event categories.
type Lane string

const (
	LaneRaw      Lane = "raw"
	LaneParsed   Lane = "parsed"
	LaneUI       Lane = "ui"
	LaneCommand  Lane = "command"
	LaneMetadata Lane = "metadata"
)

// Valid reports whether l is one of the five defined lanes.
func (l Lane) Valid() bool {
	switch l {
	case LaneRaw, LaneParsed, LaneUI, LaneCommand, LaneMetadata:
		return true
	default:
		return false
	}
}

// Message-type constants, one set per lane. Raw events carry no
// messageType; the other four lanes use these to distinguish payload
// shapes within the lane.
const (
	MessageTypeUiUpdate     = "UiUpdate"
	MessageTypeUiCheckpoint = "UiCheckpoint"

	MessageTypeCommandRequest  = "CommandRequest"
	MessageTypeCommandProgress = "CommandProgress"
	MessageTypeCommandResult   = "CommandResult"

	MessageTypeProducerDescriptor = "ProducerDescriptor"
	MessageTypeDriverBinding      = "DriverBinding"
	MessageTypeManifestPublished  = "ManifestPublished"
	MessageTypeChatMessage        = "ChatMessage"
)

// Identity is the universal public identity of a truth-producing entity,
// per Interface-Pack §3: "the renderable entity for UI, the routing key,
// and the hash input." ConnectionId/sequence/streamId are deliberately
// absent here — they are optional debug labels, never identity.
type Identity struct {
	SystemID    string `json:"systemId"`
	ContainerID string `json:"containerId"`
	UniqueID    string `json:"uniqueId"`
}

// Key renders the identity triple as the canonical hash input
// "systemId|containerId|uniqueId" per Interface-Pack §3.
func (id Identity) Key() string {
	return id.SystemID + "|" + id.ContainerID + "|" + id.UniqueID
}

func (id Identity) empty() bool {
	return id.SystemID == "" && id.ContainerID == "" && id.UniqueID == ""
}

// Header is the common envelope every event carries, regardless of lane.
type Header struct {
	EventID            string `json:"eventId"`
	ScopeID            string `json:"scopeId"`
	Lane               Lane   `json:"lane"`
	SourceTruthTime    string `json:"sourceTruthTime"`
	CanonicalTruthTime string `json:"canonicalTruthTime"`
	Identity
}

// RawPayload is the Raw lane's opaque byte payload, preserving exact
// frame boundaries. ConnectionID/Sequence are optional debug labels.
type RawPayload struct {
	Bytes        []byte `json:"bytes"`
	ConnectionID string `json:"connectionId,omitempty"`
	Sequence     *int64 `json:"sequence,omitempty"`
}

// ParsedPayload is the Parsed lane's structured message payload.
type ParsedPayload struct {
	MessageType   string         `json:"messageType"`
	SchemaVersion int            `json:"schemaVersion"`
	Payload       map[string]any `json:"payload"`
}

// UIPayload is the UI lane's partial-upsert delta or full-snapshot
// checkpoint payload. UiCheckpoint events are core-generated only.
type UIPayload struct {
	MessageType     string         `json:"messageType"`
	ViewID          string         `json:"viewId"`
	ManifestID      string         `json:"manifestId"`
	ManifestVersion string         `json:"manifestVersion"`
	Data            map[string]any `json:"data"`
}

// CommandPayload is the Command lane's correlated request/progress/result
// payload. RequestID is present only on CommandRequest, for idempotency.
type CommandPayload struct {
	MessageType string         `json:"messageType"`
	CommandID   string         `json:"commandId"`
	RequestID   string         `json:"requestId,omitempty"`
	TargetID    string         `json:"targetId"`
	CommandType string         `json:"commandType"`
	Payload     map[string]any `json:"payload"`
}

// MetadataPayload is the Metadata lane's producer/driver/manifest/chat
// fact payload, optionally keyed by a manifest rather than an entity.
type MetadataPayload struct {
	MessageType   string         `json:"messageType"`
	EffectiveTime string         `json:"effectiveTime"`
	ManifestID    string         `json:"manifestId,omitempty"`
	Payload       map[string]any `json:"payload"`
}

// Event is a fully-decoded envelope: the common header plus a
// lane-resolved payload. Exactly one of the payload fields is populated,
// matching Header.Lane.
type Event struct {
	Header
	Raw      *RawPayload      `json:"raw,omitempty"`
	Parsed   *ParsedPayload   `json:"parsed,omitempty"`
	UI       *UIPayload       `json:"ui,omitempty"`
	Command  *CommandPayload  `json:"command,omitempty"`
	Metadata *MetadataPayload `json:"metadata,omitempty"`
}

// MessageType returns the lane-specific message type, or "" for Raw
// events (which carry no messageType).
func (e Event) MessageType() string {
	switch e.Lane {
	case LaneParsed:
		if e.Parsed != nil {
			return e.Parsed.MessageType
		}
	case LaneUI:
		if e.UI != nil {
			return e.UI.MessageType
		}
	case LaneCommand:
		if e.Command != nil {
			return e.Command.MessageType
		}
	case LaneMetadata:
		if e.Metadata != nil {
			return e.Metadata.MessageType
		}
	}
	return ""
}

// CanonicalPayload returns the value that feeds EventId hashing: the raw
// bytes for the Raw lane, or the lane-specific JSON-able value for the
// other four (canonicalized separately by pkg/eventid).
func (e Event) CanonicalPayload() (any, error) {
	switch e.Lane {
	case LaneRaw:
		if e.Raw == nil {
			return nil, fmt.Errorf("raw event missing raw payload")
		}
		return e.Raw.Bytes, nil
	case LaneParsed:
		if e.Parsed == nil {
			return nil, fmt.Errorf("parsed event missing parsed payload")
		}
		return e.Parsed.Payload, nil
	case LaneUI:
		if e.UI == nil {
			return nil, fmt.Errorf("ui event missing ui payload")
		}
		return e.UI.Data, nil
	case LaneCommand:
		if e.Command == nil {
			return nil, fmt.Errorf("command event missing command payload")
		}
		return e.Command.Payload, nil
	case LaneMetadata:
		if e.Metadata == nil {
			return nil, fmt.Errorf("metadata event missing metadata payload")
		}
		return e.Metadata.Payload, nil
	default:
		return nil, fmt.Errorf("unknown lane %q", e.Lane)
	}
}

// HashKey returns the entity-identity-key component of the EventId hash
// input: the identity triple, or "manifest|<manifestId>" for metadata
// events keyed by a manifest instead of an entity (Interface-Pack §3).
func (e Event) HashKey() (string, error) {
	if e.Lane == LaneMetadata && e.Identity.empty() {
		if e.Metadata == nil || e.Metadata.ManifestID == "" {
			return "", fmt.Errorf("metadata event has neither identity triple nor manifestId")
		}
		return "manifest|" + e.Metadata.ManifestID, nil
	}
	return e.Identity.Key(), nil
}

// Validate checks the universal header and lane-specific required
// fields, per Interface-Pack §4.4 step 1. It does not check EventId.
func (e Event) Validate() error {
	if e.ScopeID == "" {
		return fmt.Errorf("scopeId is required")
	}
	if !e.Lane.Valid() {
		return fmt.Errorf("lane %q is invalid", e.Lane)
	}
	if e.SourceTruthTime == "" {
		return fmt.Errorf("sourceTruthTime is required")
	}
	if e.Lane != LaneMetadata && e.Identity.empty() {
		return fmt.Errorf("identity triple (systemId, containerId, uniqueId) is required for lane %q", e.Lane)
	}
	switch e.Lane {
	case LaneRaw:
		if e.Raw == nil {
			return fmt.Errorf("raw lane requires a raw payload")
		}
	case LaneParsed:
		if e.Parsed == nil || e.Parsed.MessageType == "" {
			return fmt.Errorf("parsed lane requires messageType")
		}
	case LaneUI:
		if e.UI == nil || e.UI.MessageType == "" {
			return fmt.Errorf("ui lane requires messageType")
		}
		if e.UI.MessageType != MessageTypeUiUpdate && e.UI.MessageType != MessageTypeUiCheckpoint {
			return fmt.Errorf("ui lane messageType must be UiUpdate or UiCheckpoint, got %q", e.UI.MessageType)
		}
	case LaneCommand:
		if e.Command == nil || e.Command.MessageType == "" {
			return fmt.Errorf("command lane requires messageType")
		}
		if e.Command.MessageType == MessageTypeCommandRequest && e.Command.CommandID == "" {
			return fmt.Errorf("command lane requires commandId")
		}
	case LaneMetadata:
		if e.Metadata == nil || e.Metadata.MessageType == "" {
			return fmt.Errorf("metadata lane requires messageType")
		}
		if e.Metadata.EffectiveTime == "" {
			return fmt.Errorf("metadata lane requires effectiveTime")
		}
		if e.Identity.empty() && e.Metadata.ManifestID == "" {
			return fmt.Errorf("metadata lane requires identity triple or manifestId")
		}
	}
	return nil
}
