package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/novaerr"
)

// insertLaneRow writes e into its lane-specific table under tx. Called
// only after event_index accepted the row, so a failure here leaves
// the caller's deferred Rollback to undo the index insert too.
func insertLaneRow(ctx context.Context, tx *sql.Tx, e event.Event, ingestSeq int64) error {
	switch e.Lane {
	case event.LaneRaw:
		return insertRaw(ctx, tx, e, ingestSeq)
	case event.LaneParsed:
		return insertParsed(ctx, tx, e, ingestSeq)
	case event.LaneUI:
		return insertUI(ctx, tx, e, ingestSeq)
	case event.LaneCommand:
		return insertCommand(ctx, tx, e, ingestSeq)
	case event.LaneMetadata:
		return insertMetadata(ctx, tx, e, ingestSeq)
	default:
		return novaerr.Validation("unknown lane %q", e.Lane)
	}
}

func insertRaw(ctx context.Context, tx *sql.Tx, e event.Event, seq int64) error {
	var connectionID any
	var sequence any
	if e.Raw.ConnectionID != "" {
		connectionID = e.Raw.ConnectionID
	}
	if e.Raw.Sequence != nil {
		sequence = *e.Raw.Sequence
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO raw_events
			(event_id, scope_id, source_truth_time, canonical_truth_time,
			 system_id, container_id, unique_id, ingest_seq,
			 connection_id, sequence, raw_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.EventID, e.ScopeID, e.SourceTruthTime, e.CanonicalTruthTime,
		e.SystemID, e.ContainerID, e.UniqueID, seq,
		connectionID, sequence, e.Raw.Bytes)
	if err != nil {
		return novaerr.Store("insert raw_events", err)
	}
	return nil
}

func insertParsed(ctx context.Context, tx *sql.Tx, e event.Event, seq int64) error {
	payload, err := json.Marshal(e.Parsed.Payload)
	if err != nil {
		return novaerr.Validation("marshal parsed payload: %v", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO parsed_events
			(event_id, scope_id, source_truth_time, canonical_truth_time,
			 system_id, container_id, unique_id, ingest_seq,
			 message_type, schema_version, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.EventID, e.ScopeID, e.SourceTruthTime, e.CanonicalTruthTime,
		e.SystemID, e.ContainerID, e.UniqueID, seq,
		e.Parsed.MessageType, e.Parsed.SchemaVersion, string(payload))
	if err != nil {
		return novaerr.Store("insert parsed_events", err)
	}
	return nil
}

func insertUI(ctx context.Context, tx *sql.Tx, e event.Event, seq int64) error {
	payload, err := json.Marshal(e.UI.Data)
	if err != nil {
		return novaerr.Validation("marshal ui payload: %v", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ui_events
			(event_id, scope_id, source_truth_time, canonical_truth_time,
			 system_id, container_id, unique_id, ingest_seq,
			 message_type, view_id, manifest_id, manifest_version, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.EventID, e.ScopeID, e.SourceTruthTime, e.CanonicalTruthTime,
		e.SystemID, e.ContainerID, e.UniqueID, seq,
		e.UI.MessageType, e.UI.ViewID, e.UI.ManifestID, e.UI.ManifestVersion, string(payload))
	if err != nil {
		return novaerr.Store("insert ui_events", err)
	}
	return nil
}

func insertCommand(ctx context.Context, tx *sql.Tx, e event.Event, seq int64) error {
	payload, err := json.Marshal(e.Command.Payload)
	if err != nil {
		return novaerr.Validation("marshal command payload: %v", err)
	}
	var requestID any
	if e.Command.RequestID != "" {
		requestID = e.Command.RequestID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO command_events
			(event_id, scope_id, source_truth_time, canonical_truth_time,
			 system_id, container_id, unique_id, ingest_seq,
			 message_type, command_id, request_id, target_id, command_type, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.EventID, e.ScopeID, e.SourceTruthTime, e.CanonicalTruthTime,
		e.SystemID, e.ContainerID, e.UniqueID, seq,
		e.Command.MessageType, e.Command.CommandID, requestID, e.Command.TargetID, e.Command.CommandType, string(payload))
	if err != nil {
		return novaerr.Store("insert command_events", err)
	}
	return nil
}

func insertMetadata(ctx context.Context, tx *sql.Tx, e event.Event, seq int64) error {
	payload, err := json.Marshal(e.Metadata.Payload)
	if err != nil {
		return novaerr.Validation("marshal metadata payload: %v", err)
	}
	var manifestID any
	if e.Metadata.ManifestID != "" {
		manifestID = e.Metadata.ManifestID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO metadata_events
			(event_id, scope_id, source_truth_time, canonical_truth_time,
			 ingest_seq, message_type, effective_time, manifest_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.EventID, e.ScopeID, e.SourceTruthTime, e.CanonicalTruthTime,
		seq, e.Metadata.MessageType, e.Metadata.EffectiveTime, manifestID, string(payload))
	if err != nil {
		return novaerr.Store("insert metadata_events", err)
	}
	return nil
}

// scanRaw, scanParsed, ... reconstruct an event.Event plus its
// ingest_seq from a lane table row.

func scanRaw(rows *sql.Rows) (event.Event, int64, error) {
	var e event.Event
	var seq int64
	var connectionID sql.NullString
	var sequence sql.NullInt64
	var raw []byte
	e.Lane = event.LaneRaw
	if err := rows.Scan(&e.EventID, &e.ScopeID, &e.SourceTruthTime, &e.CanonicalTruthTime,
		&e.SystemID, &e.ContainerID, &e.UniqueID, &seq, &connectionID, &sequence, &raw); err != nil {
		return e, 0, fmt.Errorf("store: scan raw_events: %w", err)
	}
	payload := &event.RawPayload{Bytes: raw}
	if connectionID.Valid {
		payload.ConnectionID = connectionID.String
	}
	if sequence.Valid {
		v := sequence.Int64
		payload.Sequence = &v
	}
	e.Raw = payload
	return e, seq, nil
}

func scanParsed(rows *sql.Rows) (event.Event, int64, error) {
	var e event.Event
	var seq int64
	var payloadJSON string
	var messageType string
	var schemaVersion int
	e.Lane = event.LaneParsed
	if err := rows.Scan(&e.EventID, &e.ScopeID, &e.SourceTruthTime, &e.CanonicalTruthTime,
		&e.SystemID, &e.ContainerID, &e.UniqueID, &seq, &messageType, &schemaVersion, &payloadJSON); err != nil {
		return e, 0, fmt.Errorf("store: scan parsed_events: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return e, 0, fmt.Errorf("store: decode parsed payload: %w", err)
	}
	e.Parsed = &event.ParsedPayload{MessageType: messageType, SchemaVersion: schemaVersion, Payload: payload}
	return e, seq, nil
}

func scanUI(rows *sql.Rows) (event.Event, int64, error) {
	var e event.Event
	var seq int64
	var payloadJSON, messageType, viewID, manifestID, manifestVersion string
	e.Lane = event.LaneUI
	if err := rows.Scan(&e.EventID, &e.ScopeID, &e.SourceTruthTime, &e.CanonicalTruthTime,
		&e.SystemID, &e.ContainerID, &e.UniqueID, &seq,
		&messageType, &viewID, &manifestID, &manifestVersion, &payloadJSON); err != nil {
		return e, 0, fmt.Errorf("store: scan ui_events: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &data); err != nil {
		return e, 0, fmt.Errorf("store: decode ui payload: %w", err)
	}
	e.UI = &event.UIPayload{MessageType: messageType, ViewID: viewID, ManifestID: manifestID, ManifestVersion: manifestVersion, Data: data}
	return e, seq, nil
}

func scanCommand(rows *sql.Rows) (event.Event, int64, error) {
	var e event.Event
	var seq int64
	var payloadJSON, messageType, commandID, targetID, commandType string
	var requestID sql.NullString
	e.Lane = event.LaneCommand
	if err := rows.Scan(&e.EventID, &e.ScopeID, &e.SourceTruthTime, &e.CanonicalTruthTime,
		&e.SystemID, &e.ContainerID, &e.UniqueID, &seq,
		&messageType, &commandID, &requestID, &targetID, &commandType, &payloadJSON); err != nil {
		return e, 0, fmt.Errorf("store: scan command_events: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return e, 0, fmt.Errorf("store: decode command payload: %w", err)
	}
	cp := &event.CommandPayload{MessageType: messageType, CommandID: commandID, TargetID: targetID, CommandType: commandType, Payload: payload}
	if requestID.Valid {
		cp.RequestID = requestID.String
	}
	e.Command = cp
	return e, seq, nil
}

func scanMetadata(rows *sql.Rows) (event.Event, int64, error) {
	var e event.Event
	var seq int64
	var payloadJSON, messageType, effectiveTime string
	var manifestID sql.NullString
	e.Lane = event.LaneMetadata
	if err := rows.Scan(&e.EventID, &e.ScopeID, &e.SourceTruthTime, &e.CanonicalTruthTime,
		&seq, &messageType, &effectiveTime, &manifestID, &payloadJSON); err != nil {
		return e, 0, fmt.Errorf("store: scan metadata_events: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return e, 0, fmt.Errorf("store: decode metadata payload: %w", err)
	}
	mp := &event.MetadataPayload{MessageType: messageType, EffectiveTime: effectiveTime, Payload: payload}
	if manifestID.Valid {
		mp.ManifestID = manifestID.String
	}
	e.Metadata = mp
	return e, seq, nil
}
