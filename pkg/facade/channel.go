package facade

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/peakyragnar/nova/pkg/command"
	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/export"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
	"github.com/peakyragnar/nova/pkg/stream"
)

// wireMicros is a time.Time that marshals as integer microseconds
// since the Unix epoch, per spec.md §4.11: "timestamps on the wire are
// integer microseconds since Unix epoch, converted to ISO-8601
// internally." Every other facade field keeps its native Go shape
// (query.Spec's ISO-8601 strings, event.Event's RFC3339 header
// fields); only the stream start/stop times a client sends as raw
// numbers go through this conversion, since query and command payload
// timestamps already travel as the store's native ISO-8601 strings.
type wireMicros time.Time

func (m wireMicros) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Time(m).UnixMicro(), 10)), nil
}

func (m *wireMicros) UnmarshalJSON(b []byte) error {
	micros, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("facade: timestamp must be integer microseconds: %w", err)
	}
	*m = wireMicros(time.UnixMicro(micros).UTC())
	return nil
}

// wireStreamSpec is stream.StartSpec's over-the-wire shape: StartTime
// and StopTime as wireMicros instead of time.Time.
type wireStreamSpec struct {
	ConnectionID string `json:"connectionId"`
	Role         string `json:"role"`

	ScopeID  string            `json:"scopeId"`
	Filters  query.Spec        `json:"filters"`
	Timebase ordering.Timebase `json:"timebase"`

	StartTime wireMicros  `json:"startTime"`
	StopTime  *wireMicros `json:"stopTime,omitempty"`
	Rate      float64     `json:"rate"`

	PlaybackRequestID string `json:"playbackRequestId"`
	WindowDurationMS  int64  `json:"windowDurationMs,omitempty"`
}

func (w wireStreamSpec) toSpec() stream.StartSpec {
	var stop *time.Time
	if w.StopTime != nil {
		t := time.Time(*w.StopTime)
		stop = &t
	}
	return stream.StartSpec{
		ConnectionID:      w.ConnectionID,
		Role:              stream.Role(w.Role),
		ScopeID:           w.ScopeID,
		Filters:           w.Filters,
		Timebase:          w.Timebase,
		StartTime:         time.Time(w.StartTime),
		StopTime:          stop,
		Rate:              w.Rate,
		PlaybackRequestID: w.PlaybackRequestID,
		WindowDuration:    time.Duration(w.WindowDurationMS) * time.Millisecond,
	}
}

// wireRequest and wireResponse are the JSON-line shapes exchanged over
// a Channel; exactly one payload field is populated, matching Type.
type wireRequest struct {
	Type      string           `json:"type"`
	RequestID string           `json:"requestId,omitempty"`
	Query     *query.Spec      `json:"query,omitempty"`
	Stream    *wireStreamSpec  `json:"stream,omitempty"`
	Cancel    *CancelSpec      `json:"cancel,omitempty"`
	Command   *command.Request `json:"command,omitempty"`
	Export    *export.Spec     `json:"export,omitempty"`
	Metadata  *event.Event     `json:"metadata,omitempty"`
}

type wireResponse struct {
	Type           string            `json:"type"`
	RequestID      string            `json:"requestId,omitempty"`
	QueryResult    []event.Event     `json:"queryResult,omitempty"`
	StreamChunk    *stream.Chunk     `json:"streamChunk,omitempty"`
	StreamComplete bool              `json:"streamComplete,omitempty"`
	Ack            *command.Ack      `json:"ack,omitempty"`
	ExportManifest *export.Manifest  `json:"exportManifest,omitempty"`
	Exports        []export.Manifest `json:"exports,omitempty"`
	Err            *novaerr.Error    `json:"error,omitempty"`
}

// Channel serves one Facade over a net.Conn, one JSON object per line,
// generalizing the teacher's bufio.Scanner line-delimited JSON-RPC
// framing (pkg/adapter/mcpstdio/proxy.go's readFromAgent) from stdio
// to a TCP connection.
type Channel struct {
	Facade *Facade
	Conn   net.Conn

	writeMu sync.Mutex
}

// Serve reads requests line by line until the connection closes or ctx
// is cancelled, dispatching each to Facade.Handle and writing back its
// immediate response followed by any asynchronous stream chunks. A
// connection can have a streamed response outstanding (from a prior
// startStream) while the next request is already being handled, so all
// writes to enc go through writeMu rather than relying on encoding/json
// to serialize them.
func (c *Channel) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(c.Conn)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(c.Conn)

	encode := func(v wireResponse) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return enc.Encode(v)
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var wreq wireRequest
		if err := json.Unmarshal(line, &wreq); err != nil {
			_ = encode(wireResponse{Type: RespError, Err: novaerr.Validation("malformed request: %v", err)})
			continue
		}

		req := toRequest(wreq)
		resp, chunks, _ := c.Facade.Handle(ctx, req)
		if err := encode(toWire(wreq.RequestID, resp)); err != nil {
			return fmt.Errorf("facade: write response: %w", err)
		}

		if chunks != nil {
			go func(requestID string) {
				for chunk := range chunks {
					if err := encode(toWire(requestID, chunk)); err != nil {
						return
					}
				}
			}(wreq.RequestID)
		}
	}
	return scanner.Err()
}

func toRequest(w wireRequest) Request {
	req := Request{
		Type:      w.Type,
		RequestID: w.RequestID,
		Query:     w.Query,
		Command:   w.Command,
		Export:    w.Export,
		Metadata:  w.Metadata,
		Cancel:    w.Cancel,
	}
	if w.Stream != nil {
		spec := w.Stream.toSpec()
		req.Stream = &spec
	}
	return req
}

func toWire(requestID string, r Response) wireResponse {
	return wireResponse{
		Type:           r.Type,
		RequestID:      requestID,
		QueryResult:    r.QueryResult,
		StreamChunk:    r.StreamChunk,
		StreamComplete: r.StreamComplete,
		Ack:            r.Ack,
		ExportManifest: r.ExportManifest,
		Exports:        r.Exports,
		Err:            r.Err,
	}
}
