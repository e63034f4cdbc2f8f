// Package rawappender implements the reference Raw-lane driver:
// exact bytes, concatenated, no framing overhead, per spec.md §6.
package rawappender

import (
	"fmt"
	"io"

	"github.com/peakyragnar/nova/pkg/event"
)

const (
	driverID      = "rawappender"
	driverVersion = "1"
)

// Driver appends each Raw event's bytes verbatim to raw.bin, the
// simplified generalization of the replay-writer reference's
// length-prefixed AppendEvent: spec.md's "no framing overhead"
// requirement drops the length prefix entirely.
type Driver struct{}

func (Driver) ID() string             { return driverID }
func (Driver) Version() string        { return driverVersion }
func (Driver) OutputFilename() string { return "raw.bin" }

func (Driver) Write(w io.Writer, e event.Event) error {
	if e.Raw == nil {
		return fmt.Errorf("rawappender: event %s has no raw payload", e.EventID)
	}
	_, err := w.Write(e.Raw.Bytes)
	return err
}
