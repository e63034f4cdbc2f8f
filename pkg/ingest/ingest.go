// Package ingest is the single entry point events take into the
// store, per spec.md §4.4: validate, assign identity, dedupe-insert,
// then fan out to streaming, the file writer, and UI-state — none of
// which can ever block or fail the primary insert.
package ingest

import (
	"context"
	"time"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/eventid"
	"github.com/peakyragnar/nova/pkg/filewriter"
	"github.com/peakyragnar/nova/pkg/metrics"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/peakyragnar/nova/pkg/stream"
	"github.com/peakyragnar/nova/pkg/uistate"
	"github.com/rs/zerolog"
)

// Outcome mirrors store.Outcome; kept as a distinct type so ingest
// callers never need to import pkg/store directly.
type Outcome struct {
	Inserted  bool
	IngestSeq int64
}

// Pipeline is the sole writer-side entry point into NOVA. Every field
// besides Store is optional, so tests and minimal deployments can
// construct a Pipeline with only persistence wired.
type Pipeline struct {
	Store    *store.Store
	UIState  *uistate.Manager
	Writer   *filewriter.Writer
	Notifier *stream.Notifier
	Clock    func() time.Time
	Logger   zerolog.Logger
}

// New returns a Pipeline. Clock defaults to time.Now when nil; Logger
// defaults to a no-op logger so callers that never set it (tests, the
// zero value) don't write anywhere until serve.go assigns a real one.
func New(s *store.Store) *Pipeline {
	return &Pipeline{Store: s, Clock: time.Now, Logger: zerolog.Nop()}
}

// Ingest decodes, validates, identity-checks, and persists raw, then
// fans the event out to streaming, the file writer, and UI-state.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte) (Outcome, error) {
	e, err := event.DecodeEnvelope(raw)
	if err != nil {
		return Outcome{}, novaerr.Wrap(novaerr.KindValidation, "ingest: decode envelope", err)
	}
	return p.IngestEvent(ctx, e)
}

// IngestEvent runs the same pipeline as Ingest but accepts an
// already-decoded event.Event, used by derived-event re-entry (file
// writer DriverBinding emission, UI-state checkpoint emission).
func (p *Pipeline) IngestEvent(ctx context.Context, e event.Event) (Outcome, error) {
	if err := e.Validate(); err != nil {
		return Outcome{}, novaerr.Wrap(novaerr.KindValidation, "ingest", err)
	}

	if e.EventID != "" {
		computed, matches, err := eventid.Verify(e)
		if err != nil {
			return Outcome{}, novaerr.Wrap(novaerr.KindValidation, "ingest: compute eventId", err)
		}
		if !matches {
			return Outcome{}, novaerr.EventIDMismatch(computed, e.EventID)
		}
	} else {
		computed, err := eventid.Compute(e)
		if err != nil {
			return Outcome{}, novaerr.Wrap(novaerr.KindValidation, "ingest: compute eventId", err)
		}
		e.EventID = computed
	}

	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	if e.CanonicalTruthTime == "" {
		e.CanonicalTruthTime = clock().UTC().Format(time.RFC3339)
	}

	outcome, err := p.Store.Insert(ctx, e)
	if err != nil {
		return Outcome{}, err
	}
	if !outcome.Inserted {
		metrics.DuplicateSkipped(string(e.Lane))
		return Outcome{Inserted: false}, nil
	}
	metrics.EventIngested(string(e.Lane))

	p.fanOut(e)

	return Outcome{Inserted: true, IngestSeq: outcome.IngestSeq}, nil
}

// fanOut notifies subscribers, hands the event to the file writer, and
// feeds UI-state — none of these can fail the parent insert, per
// spec.md §7: "derived-artifact failures never fail the parent
// ingest; they are logged and the primary insert stands."
func (p *Pipeline) fanOut(e event.Event) {
	if p.Notifier != nil {
		p.Notifier.Notify(e.ScopeID)
	}

	if p.Writer != nil {
		p.Writer.Enqueue(e)
	}

	if p.UIState != nil && e.Lane == event.LaneUI {
		checkpoint, err := p.UIState.Apply(e)
		if err != nil {
			p.Logger.Warn().Str("eventId", e.EventID).Str("lane", string(e.Lane)).Err(err).Msg("uistate apply failed")
			return
		}
		if checkpoint != nil {
			if _, err := p.IngestEvent(context.Background(), *checkpoint); err != nil {
				p.Logger.Error().Str("eventId", e.EventID).Err(err).Msg("uistate checkpoint re-ingest failed")
				return
			}
			metrics.CheckpointEmitted()
		}
	}
}
