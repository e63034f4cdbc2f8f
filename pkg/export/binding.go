package export

import (
	"context"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/filewriter"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
)

const epoch = "0001-01-01T00:00:00Z"

// bindingResolver resolves, for a given event, the Driver that was
// bound to its stream at the event's canonical time, per spec.md
// §4.9's binding-at-time rule: "find the latest DriverBinding for
// (targetId, targetLane) whose effectiveTime <= event_time; fall back
// to the registry's default selection only when no binding exists."
type bindingResolver struct {
	query    *query.Engine
	registry *filewriter.Registry
	cache    map[string]filewriter.Driver
}

func newBindingResolver(q *query.Engine, registry *filewriter.Registry) *bindingResolver {
	return &bindingResolver{query: q, registry: registry, cache: make(map[string]filewriter.Driver)}
}

func (r *bindingResolver) at(ctx context.Context, ev event.Event) (filewriter.Driver, bool) {
	cacheKey := ev.SystemID + "|" + ev.ContainerID + "|" + ev.UniqueID + "|" + string(ev.Lane) + "|" + ev.MessageType() + "|" + ev.CanonicalTruthTime
	if d, ok := r.cache[cacheKey]; ok {
		return d, true
	}

	bindings, err := r.query.Query(ctx, query.Spec{
		StartTime:   epoch,
		StopTime:    ev.CanonicalTruthTime,
		Timebase:    ordering.TimebaseCanonical,
		Lanes:       []event.Lane{event.LaneMetadata},
		SystemID:    ev.SystemID,
		ContainerID: ev.ContainerID,
		UniqueID:    ev.UniqueID,
		MessageType: event.MessageTypeDriverBinding,
	})
	if err != nil {
		return r.fallback(ev)
	}

	var driverID string
	for _, b := range bindings {
		if b.Metadata == nil {
			continue
		}
		lane, _ := b.Metadata.Payload["lane"].(string)
		messageType, _ := b.Metadata.Payload["messageType"].(string)
		if lane != string(ev.Lane) || messageType != ev.MessageType() {
			continue
		}
		if id, ok := b.Metadata.Payload["driverId"].(string); ok {
			driverID = id
		}
	}

	if driverID == "" {
		return r.fallback(ev)
	}
	driver, ok := r.registry.Get(driverID)
	if !ok {
		return r.fallback(ev)
	}
	r.cache[cacheKey] = driver
	return driver, true
}

func (r *bindingResolver) fallback(ev event.Event) (filewriter.Driver, bool) {
	return r.registry.Select(ev.Lane, ev.MessageType())
}
