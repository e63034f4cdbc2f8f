package store

import (
	"context"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/novaerr"
)

// LookupCommandByRequestID finds the CommandRequest persisted under
// requestId, if any, per spec.md §4.10 step 2's idempotency check.
// This bypasses pkg/query.Engine's bounded-window requirement
// deliberately: requestId is a point lookup, not a timeline query.
func (s *Store) LookupCommandByRequestID(ctx context.Context, requestID string) (event.Event, bool, error) {
	lt := laneTables[event.LaneCommand]
	query := "SELECT " + lt.columns + " FROM " + lt.table + " WHERE request_id = ? LIMIT 1"

	rows, err := s.reader.QueryContext(ctx, query, requestID)
	if err != nil {
		return event.Event{}, false, novaerr.Store("lookup command by requestId", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return event.Event{}, false, nil
	}
	ev, _, err := lt.scan(rows)
	if err != nil {
		return event.Event{}, false, novaerr.Store("scan command lookup", err)
	}
	return ev, true, nil
}
