// Package ordering is the single source of truth for the order of events
// across every read path — query, stream, and replay — per
// Interface-Pack §4.2. No other package may sort events independently.
//
// Two distinct contracts coexist and must not be conflated:
//
//   - Global Truth Order: the cross-lane, deterministic order used by
//     queries, streams, and UI rendering. Primary key is the selected
//     timebase, tie-broken by lane priority, then by eventId.
//   - File Parity Order: ingest order (monotonic insertion sequence),
//     used only by file writers and the export engine, so that an
//     export reproduces byte-identical output to what a real-time
//     writer produced (a writer has no other order available to it at
//     emission time than the order frames arrived).
package ordering

import (
	"sort"

	"github.com/peakyragnar/nova/pkg/event"
)

// Timebase selects which timestamp field Global Truth Order sorts by.
type Timebase string

const (
	TimebaseSource    Timebase = "source"
	TimebaseCanonical Timebase = "canonical"
)

func (t Timebase) column() string {
	if t == TimebaseCanonical {
		return "canonical_truth_time"
	}
	return "source_truth_time"
}

// LanePriority is the Global Truth Order tie-break when two events
// share the same timebase time: metadata(0) < command(1) < ui(2) <
// parsed(3) < raw(4).
func LanePriority(lane event.Lane) int {
	switch lane {
	case event.LaneMetadata:
		return 0
	case event.LaneCommand:
		return 1
	case event.LaneUI:
		return 2
	case event.LaneParsed:
		return 3
	case event.LaneRaw:
		return 4
	default:
		return 99
	}
}

func timebaseOf(e event.Event, tb Timebase) string {
	if tb == TimebaseCanonical {
		return e.CanonicalTruthTime
	}
	return e.SourceTruthTime
}

// SortGlobalTruthOrder sorts events in place by the Global Truth Order:
// timebase time ascending, then lane priority, then eventId.
func SortGlobalTruthOrder(events []event.Event, tb Timebase) {
	sort.SliceStable(events, func(i, j int) bool {
		ti, tj := timebaseOf(events[i], tb), timebaseOf(events[j], tb)
		if ti != tj {
			return ti < tj
		}
		pi, pj := LanePriority(events[i].Lane), LanePriority(events[j].Lane)
		if pi != pj {
			return pi < pj
		}
		return events[i].EventID < events[j].EventID
	})
}

// SortFileParityOrder sorts events in place by File Parity Order: ingest
// order ascending. Callers that already fetched rows in ingest_seq order
// per lane (the common case) still need this to merge across lanes.
func SortFileParityOrder(events []event.Event, ingestSeq map[string]int64) {
	sort.SliceStable(events, func(i, j int) bool {
		return ingestSeq[events[i].EventID] < ingestSeq[events[j].EventID]
	})
}

// GlobalTruthOrderSQL returns an ORDER BY fragment for a single lane
// table query under the Global Truth Order's primary sort key. The
// lane-priority tie-break is applied in Go when merging across lanes
// (SortGlobalTruthOrder), since a single lane table query has only one
// lane to begin with.
func GlobalTruthOrderSQL(tb Timebase) string {
	col := tb.column()
	return "ORDER BY " + col + " ASC, event_id ASC"
}

// FileParityOrderSQL returns the ORDER BY fragment for File Parity
// Order: monotonic ingest sequence ascending.
func FileParityOrderSQL() string {
	return "ORDER BY ingest_seq ASC"
}
