// Package command is NOVA's command lifecycle manager, per spec.md
// §4.10: producers own execution, core owns record-keeping. Submit
// records a CommandRequest before handing it to the transport, so the
// record survives even if dispatch never reaches the producer.
package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/ingest"
	"github.com/peakyragnar/nova/pkg/metrics"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/store"
	"github.com/rs/zerolog"
)

// TimelineMode gates whether commands may be submitted. Checked by the
// facade's submitCommand and again by Manager.Submit, per spec.md
// §4.10's defense-in-depth requirement; no stream operation takes a
// TimelineMode.
type TimelineMode string

const (
	TimelineModeLive   TimelineMode = "LIVE"
	TimelineModeReplay TimelineMode = "REPLAY"
)

// CheckReplayMode is the shared governance check every layer calls
// before accepting a command-shaped operation, named and shaped after
// the teacher's pkg/policy governance helpers (one small function,
// one well-named error, called at every boundary that needs it).
func CheckReplayMode(mode TimelineMode) error {
	if mode == TimelineModeReplay {
		return novaerr.ReplayBlocked
	}
	return nil
}

// Request is a caller's command submission.
type Request struct {
	RequestID   string
	ScopeID     string
	Identity    event.Identity
	TargetID    string
	CommandType string
	Payload     map[string]any
}

// Ack is returned on a successful (or idempotently repeated) submit.
type Ack struct {
	CommandID string
}

// Dispatcher hands a recorded CommandRequest event to the transport
// layer that actually reaches the producer. It is a function, not a
// concrete client, per spec.md §1's "core owns record-keeping,
// producers own execution" boundary.
type Dispatcher func(ctx context.Context, e event.Event) error

// Manager implements the submit flow of spec.md §4.10.
type Manager struct {
	Store    *store.Store
	Ingest   *ingest.Pipeline
	Dispatch Dispatcher
	Clock    func() time.Time
	Logger   zerolog.Logger

	newCommandID func() string
}

// New returns a Manager. s and p must share the same underlying
// store; s is used for the requestId idempotency lookup, p for
// record-before-dispatch persistence. Logger defaults to a no-op
// logger until serve.go assigns a real one.
func New(s *store.Store, p *ingest.Pipeline, dispatch Dispatcher) *Manager {
	return &Manager{
		Store:        s,
		Ingest:       p,
		Dispatch:     dispatch,
		Clock:        time.Now,
		Logger:       zerolog.Nop(),
		newCommandID: uuid.NewString,
	}
}

// Submit runs spec.md §4.10's five-step flow: replay check, idempotent
// lookup, record, dispatch, synthesize a failure result if dispatch
// errors.
func (m *Manager) Submit(ctx context.Context, mode TimelineMode, req Request) (Ack, error) {
	if err := CheckReplayMode(mode); err != nil {
		metrics.CommandBlocked()
		return Ack{}, err
	}

	if req.RequestID != "" {
		existing, found, err := m.Store.LookupCommandByRequestID(ctx, req.RequestID)
		if err != nil {
			return Ack{}, err
		}
		if found {
			return Ack{CommandID: existing.Command.CommandID}, nil
		}
	}

	commandID := m.newCommandID()
	now := m.clock().UTC().Format(time.RFC3339)

	request := event.Event{
		Header: event.Header{
			ScopeID:         req.ScopeID,
			Lane:            event.LaneCommand,
			SourceTruthTime: now,
			Identity:        req.Identity,
		},
		Command: &event.CommandPayload{
			MessageType: event.MessageTypeCommandRequest,
			CommandID:   commandID,
			RequestID:   req.RequestID,
			TargetID:    req.TargetID,
			CommandType: req.CommandType,
			Payload:     req.Payload,
		},
	}

	if _, err := m.Ingest.IngestEvent(ctx, request); err != nil {
		return Ack{}, err
	}

	if err := m.Dispatch(ctx, request); err != nil {
		metrics.CommandDispatchError()
		m.recordFailure(ctx, req, commandID, err)
		return Ack{}, err
	}

	metrics.CommandSubmitted()
	return Ack{CommandID: commandID}, nil
}

// recordFailure persists a synthetic CommandResult(status=failure) per
// spec.md §4.10 step 5. Its own ingest failure is logged, never
// returned — the dispatch error is what the caller needs to see.
func (m *Manager) recordFailure(ctx context.Context, req Request, commandID string, dispatchErr error) {
	result := event.Event{
		Header: event.Header{
			ScopeID:         req.ScopeID,
			Lane:            event.LaneCommand,
			SourceTruthTime: m.clock().UTC().Format(time.RFC3339),
			Identity:        req.Identity,
		},
		Command: &event.CommandPayload{
			MessageType: event.MessageTypeCommandResult,
			CommandID:   commandID,
			TargetID:    req.TargetID,
			CommandType: req.CommandType,
			Payload: map[string]any{
				"status":       "failure",
				"errorMessage": dispatchErr.Error(),
			},
		},
	}
	if _, err := m.Ingest.IngestEvent(ctx, result); err != nil {
		m.Logger.Error().Str("commandId", commandID).Err(err).Msg("failed to record dispatch failure")
	}
}

func (m *Manager) clock() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}
