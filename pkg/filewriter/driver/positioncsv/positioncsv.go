// Package positioncsv implements the reference Parsed/Position driver:
// one CSV row per Position message, per spec.md §6.
package positioncsv

import (
	"fmt"
	"io"

	"github.com/peakyragnar/nova/pkg/event"
)

const (
	driverID      = "positioncsv"
	driverVersion = "1"
	header        = "sourceTruthTime (UTC),iTOW (ms),latitude (deg),longitude (deg),altitude (HAE-m),fixType\n"
)

// Driver writes one CSV row per Position event to llas.csv.
type Driver struct{}

func (Driver) ID() string             { return driverID }
func (Driver) Version() string        { return driverVersion }
func (Driver) OutputFilename() string { return "llas.csv" }

// Header returns the CSV header line, written once per file by the
// filewriter on first open (via the HeaderWriter interface).
func (Driver) Header() []byte { return []byte(header) }

func (Driver) Write(w io.Writer, e event.Event) error {
	if e.Parsed == nil || e.Parsed.MessageType != "Position" {
		return fmt.Errorf("positioncsv: event %s is not a Position message", e.EventID)
	}
	p := e.Parsed.Payload
	_, err := fmt.Fprintf(w, "%s,%v,%v,%v,%v,%v\n",
		e.SourceTruthTime,
		p["iTOW"], p["latitude"], p["longitude"], p["altitude"], p["fixType"])
	return err
}
