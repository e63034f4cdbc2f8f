package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/ordering"
)

// Spec is a bounded query over one or more lanes. StartTime/StopTime
// are inclusive ISO-8601 strings compared against Timebase's column,
// per spec.md §4.5. An empty Lanes selects all five.
type Spec struct {
	StartTime string
	StopTime  string
	Timebase  ordering.Timebase

	ScopeID string
	Lanes   []event.Lane

	SystemID    string
	ContainerID string
	UniqueID    string

	MessageType string
	ViewID      string
	ManifestID  string
	CommandID   string
	CommandType string
	RequestID   string

	Limit int

	// ParityMode selects File Parity Order (ingest sequence) instead of
	// Global Truth Order, for the export engine and file-writer replay.
	ParityMode bool
}

var allLanes = []event.Lane{event.LaneMetadata, event.LaneCommand, event.LaneUI, event.LaneParsed, event.LaneRaw}

func (s Spec) lanes() []event.Lane {
	if len(s.Lanes) == 0 {
		return allLanes
	}
	return s.Lanes
}

type laneTable struct {
	lane    event.Lane
	table   string
	columns string
	scan    func(*sql.Rows) (event.Event, int64, error)
}

var laneTables = map[event.Lane]laneTable{
	event.LaneRaw: {
		lane: event.LaneRaw, table: "raw_events",
		columns: "event_id, scope_id, source_truth_time, canonical_truth_time, system_id, container_id, unique_id, ingest_seq, connection_id, sequence, raw_bytes",
		scan:    scanRaw,
	},
	event.LaneParsed: {
		lane: event.LaneParsed, table: "parsed_events",
		columns: "event_id, scope_id, source_truth_time, canonical_truth_time, system_id, container_id, unique_id, ingest_seq, message_type, schema_version, payload_json",
		scan:    scanParsed,
	},
	event.LaneUI: {
		lane: event.LaneUI, table: "ui_events",
		columns: "event_id, scope_id, source_truth_time, canonical_truth_time, system_id, container_id, unique_id, ingest_seq, message_type, view_id, manifest_id, manifest_version, payload_json",
		scan:    scanUI,
	},
	event.LaneCommand: {
		lane: event.LaneCommand, table: "command_events",
		columns: "event_id, scope_id, source_truth_time, canonical_truth_time, system_id, container_id, unique_id, ingest_seq, message_type, command_id, request_id, target_id, command_type, payload_json",
		scan:    scanCommand,
	},
	event.LaneMetadata: {
		lane: event.LaneMetadata, table: "metadata_events",
		columns: "event_id, scope_id, source_truth_time, canonical_truth_time, ingest_seq, message_type, effective_time, manifest_id, payload_json",
		scan:    scanMetadata,
	},
}

// Query runs one SELECT per referenced lane against the reader handle
// and merges results with pkg/ordering — no post-filter sorting is
// permitted anywhere else, per spec.md §4.5: "ordering is the store's
// contract."
func (s *Store) Query(ctx context.Context, spec Spec) ([]event.Event, error) {
	timebase := spec.Timebase
	if timebase == "" {
		timebase = ordering.TimebaseSource
	}

	var merged []event.Event
	ingestSeq := make(map[string]int64)

	for _, lane := range spec.lanes() {
		lt, ok := laneTables[lane]
		if !ok {
			return nil, novaerr.Validation("unknown lane %q", lane)
		}
		events, err := s.queryLane(ctx, lt, spec, timebase)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			merged = append(merged, ev.event)
			ingestSeq[ev.event.EventID] = ev.ingestSeq
		}
	}

	if spec.ParityMode {
		ordering.SortFileParityOrder(merged, ingestSeq)
	} else {
		ordering.SortGlobalTruthOrder(merged, timebase)
	}

	if spec.Limit > 0 && len(merged) > spec.Limit {
		merged = merged[:spec.Limit]
	}
	return merged, nil
}

type scannedEvent struct {
	event     event.Event
	ingestSeq int64
}

func (s *Store) queryLane(ctx context.Context, lt laneTable, spec Spec, timebase ordering.Timebase) ([]scannedEvent, error) {
	timeCol := "source_truth_time"
	if timebase == ordering.TimebaseCanonical {
		timeCol = "canonical_truth_time"
	}

	var where []string
	var args []any

	if spec.StartTime != "" {
		where = append(where, timeCol+" >= ?")
		args = append(args, spec.StartTime)
	}
	if spec.StopTime != "" {
		where = append(where, timeCol+" <= ?")
		args = append(args, spec.StopTime)
	}
	if spec.ScopeID != "" {
		where = append(where, "scope_id = ?")
		args = append(args, spec.ScopeID)
	}
	if spec.SystemID != "" {
		where = append(where, "system_id = ?")
		args = append(args, spec.SystemID)
	}
	if spec.ContainerID != "" {
		where = append(where, "container_id = ?")
		args = append(args, spec.ContainerID)
	}
	if spec.UniqueID != "" {
		where = append(where, "unique_id = ?")
		args = append(args, spec.UniqueID)
	}
	if spec.MessageType != "" && lt.lane != event.LaneRaw {
		where = append(where, "message_type = ?")
		args = append(args, spec.MessageType)
	}
	if spec.ViewID != "" && lt.lane == event.LaneUI {
		where = append(where, "view_id = ?")
		args = append(args, spec.ViewID)
	}
	if spec.ManifestID != "" && (lt.lane == event.LaneUI || lt.lane == event.LaneMetadata) {
		where = append(where, "manifest_id = ?")
		args = append(args, spec.ManifestID)
	}
	if spec.CommandID != "" && lt.lane == event.LaneCommand {
		where = append(where, "command_id = ?")
		args = append(args, spec.CommandID)
	}
	if spec.CommandType != "" && lt.lane == event.LaneCommand {
		where = append(where, "command_type = ?")
		args = append(args, spec.CommandType)
	}
	if spec.RequestID != "" && lt.lane == event.LaneCommand {
		where = append(where, "request_id = ?")
		args = append(args, spec.RequestID)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", lt.columns, lt.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if spec.ParityMode {
		query += " " + ordering.FileParityOrderSQL()
	} else {
		query += " " + ordering.GlobalTruthOrderSQL(timebase)
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, novaerr.Store("query "+lt.table, err)
	}
	defer rows.Close()

	var out []scannedEvent
	for rows.Next() {
		ev, seq, err := lt.scan(rows)
		if err != nil {
			return nil, novaerr.Store("scan "+lt.table, err)
		}
		out = append(out, scannedEvent{event: ev, ingestSeq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, novaerr.Store("iterate "+lt.table, err)
	}
	return out, nil
}
