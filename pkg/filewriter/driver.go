// Package filewriter persists real-time file output alongside the
// store, invoked by ingest and only by ingest, per spec.md §4.8.
package filewriter

import (
	"io"

	"github.com/peakyragnar/nova/pkg/event"
)

// Driver is a lane+messageType-keyed encoder. Implementations must be
// safe to call repeatedly against the same io.Writer (the writer keeps
// one open file handle per binding and appends).
type Driver interface {
	ID() string
	Version() string
	OutputFilename() string
	Write(w io.Writer, e event.Event) error
}

// Registry selects a Driver by (lane, messageType), a pure function
// over a closed map, per spec.md §4.8's "must be a pure function"
// requirement — Select never mutates, logs, or performs I/O.
type Registry struct {
	drivers map[string]Driver
}

// NewRegistry builds a Registry from drivers, keyed by Driver.ID().
func NewRegistry(drivers ...Driver) *Registry {
	r := &Registry{drivers: make(map[string]Driver, len(drivers))}
	for _, d := range drivers {
		r.drivers[d.ID()] = d
	}
	return r
}

// bindingKey is the selection key, lane+"/"+messageType, with an empty
// messageType acting as a lane-wide wildcard fallback.
func bindingKey(lane event.Lane, messageType string) string {
	return string(lane) + "/" + messageType
}

// defaultBindings maps a selection key directly to a driver ID. Built in by
// default; a future config-driven registry could replace this map
// without changing Select's signature.
var defaultBindings = map[string]string{
	bindingKey(event.LaneRaw, ""):                    "rawappender",
	bindingKey(event.LaneParsed, "Position"):          "positioncsv",
}

// Select resolves the driver for (lane, messageType), falling back to
// the lane-wide wildcard binding when no exact messageType binding
// exists. Reports false when nothing matches.
func (r *Registry) Select(lane event.Lane, messageType string) (Driver, bool) {
	if id, ok := defaultBindings[bindingKey(lane, messageType)]; ok {
		if d, ok := r.drivers[id]; ok {
			return d, true
		}
	}
	if id, ok := defaultBindings[bindingKey(lane, "")]; ok {
		if d, ok := r.drivers[id]; ok {
			return d, true
		}
	}
	return nil, false
}

// Get returns a driver by ID, used by the export engine when resolving
// a binding-at-time record that names a driver no longer in
// defaultBindings.
func (r *Registry) Get(id string) (Driver, bool) {
	d, ok := r.drivers[id]
	return d, ok
}
