// Package facade is NOVA's transport-agnostic request/response
// surface, per spec.md §4.11: a typed operation set that works the
// same over an in-process call, a socket, or a queue. Facade.Handle is
// the one entry point every transport adapter calls into.
package facade

import (
	"context"
	"errors"

	"github.com/peakyragnar/nova/pkg/command"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/export"
	"github.com/peakyragnar/nova/pkg/ingest"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/stream"
)

// Operation names, per spec.md §4.11.
const (
	OpQuery           = "query"
	OpStartStream     = "startStream"
	OpCancelStream    = "cancelStream"
	OpSetPlaybackRate = "setPlaybackRate"
	OpSubmitCommand   = "submitCommand"
	OpExport          = "export"
	OpListExports     = "listExports"
	OpIngestMetadata  = "ingestMetadata"
)

// Request is one typed facade call. Exactly one of the per-operation
// fields is populated, matching Type.
type Request struct {
	Type      string
	RequestID string

	Query    *query.Spec
	Stream   *stream.StartSpec
	Cancel   *CancelSpec
	Command  *command.Request
	Export   *export.Spec
	Metadata *event.Event
}

// CancelSpec names the (connectionID, role) a cancelStream or
// setPlaybackRate call targets.
type CancelSpec struct {
	ConnectionID string
	Role         stream.Role
}

// Response is one typed facade reply. StreamChunk/StreamComplete are
// populated only for responses pushed asynchronously after a
// startStream call returns its initial acknowledgement.
type Response struct {
	Type string

	QueryResult    []event.Event
	StreamChunk    *stream.Chunk
	StreamComplete bool
	Ack            *command.Ack
	ExportManifest *export.Manifest
	Exports        []export.Manifest
	Err            *novaerr.Error
}

// Response type tags.
const (
	RespQueryResult   = "queryResult"
	RespStreamStarted = "streamStarted"
	RespStreamChunk   = "streamChunk"
	RespAck           = "ack"
	RespExportResult  = "exportResult"
	RespExportList    = "exportList"
	RespError         = "error"
)

// Facade composes every read/write engine behind one typed call
// surface. Mode reports the current timeline mode so submitCommand can
// apply spec.md §4.10's replay-blocking defense-in-depth even though
// command.Manager checks it again itself.
type Facade struct {
	Query     *query.Engine
	StreamMgr *stream.Manager
	Notifier  *stream.Notifier
	Command   *command.Manager
	Export    *export.Engine
	Ingest    *ingest.Pipeline
	Mode      func() command.TimelineMode
}

// Handle dispatches req and returns its immediate Response. For
// startStream/setPlaybackRate, the returned channel carries every
// subsequent StreamChunk response until the cursor is done or
// cancelled; it is nil for every other operation.
func (f *Facade) Handle(ctx context.Context, req Request) (Response, <-chan Response, error) {
	switch req.Type {
	case OpQuery:
		return f.handleQuery(ctx, req)
	case OpStartStream, OpSetPlaybackRate:
		return f.handleStartStream(ctx, req)
	case OpCancelStream:
		return f.handleCancelStream(req)
	case OpSubmitCommand:
		return f.handleSubmitCommand(ctx, req)
	case OpExport:
		return f.handleExport(ctx, req)
	case OpListExports:
		return f.handleListExports()
	case OpIngestMetadata:
		return f.handleIngestMetadata(ctx, req)
	default:
		err := novaerr.UnknownRequestType(req.Type)
		return errResponse(err), nil, err
	}
}

func (f *Facade) handleQuery(ctx context.Context, req Request) (Response, <-chan Response, error) {
	if req.Query == nil {
		err := novaerr.Validation("query request requires a Query spec")
		return errResponse(err), nil, err
	}
	events, err := f.Query.Query(ctx, *req.Query)
	if err != nil {
		return errResponse(err), nil, err
	}
	return Response{Type: RespQueryResult, QueryResult: events}, nil, nil
}

func (f *Facade) handleStartStream(ctx context.Context, req Request) (Response, <-chan Response, error) {
	if req.Stream == nil {
		err := novaerr.Validation("startStream request requires a Stream spec")
		return errResponse(err), nil, err
	}
	chunks, _, err := f.StreamMgr.StartFromSpec(ctx, f.Query, f.Notifier, *req.Stream)
	if err != nil {
		return errResponse(err), nil, err
	}

	responses := make(chan Response)
	go func() {
		defer close(responses)
		for chunk := range chunks {
			c := chunk
			responses <- Response{Type: RespStreamChunk, StreamChunk: &c, StreamComplete: c.Done}
		}
	}()

	return Response{Type: RespStreamStarted}, responses, nil
}

func (f *Facade) handleCancelStream(req Request) (Response, <-chan Response, error) {
	if req.Cancel == nil {
		err := novaerr.Validation("cancelStream request requires a Cancel spec")
		return errResponse(err), nil, err
	}
	f.StreamMgr.Cancel(req.Cancel.ConnectionID, req.Cancel.Role)
	return Response{Type: RespAck}, nil, nil
}

func (f *Facade) handleSubmitCommand(ctx context.Context, req Request) (Response, <-chan Response, error) {
	if req.Command == nil {
		err := novaerr.Validation("submitCommand request requires a Command spec")
		return errResponse(err), nil, err
	}
	mode := command.TimelineModeLive
	if f.Mode != nil {
		mode = f.Mode()
	}
	if err := command.CheckReplayMode(mode); err != nil {
		return errResponse(err), nil, err
	}
	ack, err := f.Command.Submit(ctx, mode, *req.Command)
	if err != nil {
		return errResponse(err), nil, err
	}
	return Response{Type: RespAck, Ack: &ack}, nil, nil
}

func (f *Facade) handleExport(ctx context.Context, req Request) (Response, <-chan Response, error) {
	if req.Export == nil {
		err := novaerr.Validation("export request requires an Export spec")
		return errResponse(err), nil, err
	}
	manifest, err := f.Export.Run(ctx, *req.Export)
	if err != nil {
		return errResponse(err), nil, err
	}
	return Response{Type: RespExportResult, ExportManifest: &manifest}, nil, nil
}

func (f *Facade) handleListExports() (Response, <-chan Response, error) {
	manifests, err := f.Export.List()
	if err != nil {
		return errResponse(err), nil, err
	}
	return Response{Type: RespExportList, Exports: manifests}, nil, nil
}

func (f *Facade) handleIngestMetadata(ctx context.Context, req Request) (Response, <-chan Response, error) {
	if req.Metadata == nil {
		err := novaerr.Validation("ingestMetadata request requires a Metadata event")
		return errResponse(err), nil, err
	}
	if _, err := f.Ingest.IngestEvent(ctx, *req.Metadata); err != nil {
		return errResponse(err), nil, err
	}
	return Response{Type: RespAck}, nil, nil
}

func errResponse(err error) Response {
	var novaErr *novaerr.Error
	if !errors.As(err, &novaErr) {
		novaErr = novaerr.Wrap(novaerr.KindStore, "facade", err)
	}
	return Response{Type: RespError, Err: novaErr}
}
