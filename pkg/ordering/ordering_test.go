package ordering_test

import (
	"testing"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/stretchr/testify/require"
)

func evt(lane event.Lane, id, sourceTime string) event.Event {
	return event.Event{Header: event.Header{EventID: id, Lane: lane, SourceTruthTime: sourceTime}}
}

func TestLanePriorityOrdering(t *testing.T) {
	require.Less(t, ordering.LanePriority(event.LaneMetadata), ordering.LanePriority(event.LaneCommand))
	require.Less(t, ordering.LanePriority(event.LaneCommand), ordering.LanePriority(event.LaneUI))
	require.Less(t, ordering.LanePriority(event.LaneUI), ordering.LanePriority(event.LaneParsed))
	require.Less(t, ordering.LanePriority(event.LaneParsed), ordering.LanePriority(event.LaneRaw))
}

func TestSortGlobalTruthOrderByTimeThenLane(t *testing.T) {
	events := []event.Event{
		evt(event.LaneRaw, "e3", "2026-01-01T00:00:01Z"),
		evt(event.LaneMetadata, "e2", "2026-01-01T00:00:01Z"),
		evt(event.LaneUI, "e1", "2026-01-01T00:00:00Z"),
	}
	ordering.SortGlobalTruthOrder(events, ordering.TimebaseSource)

	require.Equal(t, []string{"e1", "e2", "e3"}, ids(events))
}

func TestSortGlobalTruthOrderTiebreaksOnEventID(t *testing.T) {
	events := []event.Event{
		evt(event.LaneRaw, "zz", "2026-01-01T00:00:00Z"),
		evt(event.LaneRaw, "aa", "2026-01-01T00:00:00Z"),
	}
	ordering.SortGlobalTruthOrder(events, ordering.TimebaseSource)
	require.Equal(t, []string{"aa", "zz"}, ids(events))
}

func TestSortFileParityOrderUsesIngestSequence(t *testing.T) {
	events := []event.Event{
		evt(event.LaneRaw, "e1", ""),
		evt(event.LaneMetadata, "e2", ""),
	}
	seq := map[string]int64{"e1": 5, "e2": 1}
	ordering.SortFileParityOrder(events, seq)
	require.Equal(t, []string{"e2", "e1"}, ids(events))
}

func ids(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventID
	}
	return out
}
