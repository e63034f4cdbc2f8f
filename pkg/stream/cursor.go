package stream

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/peakyragnar/nova/pkg/novaerr"
	"github.com/peakyragnar/nova/pkg/ordering"
	"github.com/peakyragnar/nova/pkg/query"
)

// atomicTime is an atomic.Value specialized for time.Time, so a
// Follower can sample a leader's CurrentTime from another goroutine
// without a mutex, per spec.md §4.6's Follower semantics.
type atomicTime struct {
	v atomic.Value
}

func (a *atomicTime) Load() time.Time {
	t, _ := a.v.Load().(time.Time)
	return t
}

func (a *atomicTime) Store(t time.Time) {
	a.v.Store(t)
}

// DefaultWindowDuration is the fixed timeline-time window a cursor
// advances by on each pacing step, per spec.md §4.6.
const DefaultWindowDuration = time.Second

// farFuture stands in for an open-ended stopTime in live-follow
// queries, since query.Engine requires both bounds to be non-empty.
const farFuture = "9999-12-31T23:59:59Z"

// ChunkBuffer bounds how many chunks a cursor will queue ahead of a
// slow consumer before blocking its own pacing loop.
const ChunkBuffer = 4

// Chunk is one paced emission. Done is set on the final chunk of a
// bounded replay (reaching stopTime, or a failed window query ending
// it). A cancelled cursor sends no Done chunk; its channel just closes.
type Chunk struct {
	Events            []event.Event
	PlaybackRequestID string
	Done              bool
}

// Cursor is one ephemeral, server-paced playback state, per spec.md
// §4.6. All state lives in the struct; cancelling ctx drops it — there
// is no persisted cursor state anywhere in the store.
type Cursor struct {
	Query  *query.Engine
	Notify *Notifier

	ScopeID  string
	Filters  query.Spec
	Timebase ordering.Timebase

	StartTime time.Time
	StopTime  *time.Time
	Rate      float64

	PlaybackRequestID string
	WindowDuration    time.Duration

	// CurrentTime is read by Follower cursors via atomic.Value; callers
	// never mutate it directly, only the pacing loops (Run and
	// RunFollower) do, through setCurrent.
	current currentTime

	// consumed marks that an event has already been delivered exactly
	// at the current boundary, so live-follow excludes it next tick.
	consumed bool
}

// currentTime wraps an atomic.Value so zero-value Cursor has a usable
// (zero time.Time) CurrentTime before Run starts.
type currentTime struct {
	v atomicTime
}

// CurrentTime returns the cursor's last-emitted window boundary.
func (c *Cursor) CurrentTime() time.Time {
	return c.current.v.Load()
}

func (c *Cursor) setCurrent(t time.Time) {
	c.current.v.Store(t)
}

// Run starts the pacing loop and returns a channel of Chunks. The
// channel closes, and the goroutine exits, as soon as ctx is
// cancelled — synchronous cancellation per spec.md §4.6.
func (c *Cursor) Run(ctx context.Context) (<-chan Chunk, error) {
	if c.Query == nil {
		return nil, novaerr.Validation("stream: cursor requires a non-nil Query engine")
	}
	window := c.WindowDuration
	if window <= 0 {
		window = DefaultWindowDuration
	}
	c.setCurrent(c.StartTime)

	out := make(chan Chunk, ChunkBuffer)
	go c.run(ctx, window, out)
	return out, nil
}

func (c *Cursor) run(ctx context.Context, window time.Duration, out chan<- Chunk) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}

		switch {
		case c.Rate == 0:
			if !c.waitPaused(ctx) {
				return
			}
			continue
		case c.StopTime == nil && c.Rate > 0:
			if !c.stepLiveFollow(ctx, window, out) {
				return
			}
		case c.StopTime == nil && c.Rate < 0:
			if !c.stepPage(ctx, window, out, -1) {
				return
			}
		case c.StopTime != nil && c.Rate > 0:
			if done := c.stepBounded(ctx, window, out, 1); done {
				return
			}
		default: // StopTime != nil && Rate < 0
			if done := c.stepBounded(ctx, window, out, -1); done {
				return
			}
		}

		if !c.sleepPaced(ctx, window) {
			return
		}
	}
}

// waitPaused blocks until the cursor's rate changes or ctx is
// cancelled. Paused cursors hold their state and emit nothing, per
// spec.md §4.6's "any/=0: Paused" row. In this struct-owned-by-one-
// goroutine design, a rate change means the caller replaces the
// Cursor via Manager.Start with a fresh PlaybackRequestID, so waiting
// here really means waiting for cancellation.
func (c *Cursor) waitPaused(ctx context.Context) bool {
	timer := time.NewTimer(DefaultWindowDuration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// stepLiveFollow waits for the notifier (or a poll tick, as a
// fallback against missed signals) and emits anything newly ingested
// at or after the current window boundary. Once an event has been
// delivered at a given boundary, c.consumed excludes it from the next
// query by advancing the lower bound one second (the store's
// timestamp resolution) so a steady boundary with no new data never
// redelivers the same event.
func (c *Cursor) stepLiveFollow(ctx context.Context, window time.Duration, out chan<- Chunk) bool {
	waitCh := c.notifyWait()
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-waitCh:
	case <-timer.C:
	}

	from := c.CurrentTime()
	if c.consumed {
		from = from.Add(time.Second)
	}

	spec := c.Filters
	spec.ScopeID = c.ScopeID
	spec.Timebase = c.Timebase
	spec.StartTime = from.UTC().Format(time.RFC3339)
	spec.StopTime = farFuture

	events, err := c.Query.Query(ctx, spec)
	if err != nil {
		return c.send(ctx, out, Chunk{PlaybackRequestID: c.PlaybackRequestID})
	}
	if len(events) > 0 {
		c.setCurrent(latestTime(events, c.Timebase))
		c.consumed = true
	}
	return c.send(ctx, out, Chunk{Events: events, PlaybackRequestID: c.PlaybackRequestID})
}

func (c *Cursor) notifyWait() <-chan struct{} {
	if c.Notify == nil {
		ch := make(chan struct{})
		return ch
	}
	return c.Notify.Wait(c.ScopeID)
}

// stepPage pages backward through unbounded history (infinite rewind,
// rate<0, stopTime nil) one window at a time. The true boundary
// between pages (the paging "to") is always inclusive on the page
// that reaches it first; the opposite end ("from") is left for the
// next page to pick up, so consecutive pages never overlap or skip.
func (c *Cursor) stepPage(ctx context.Context, window time.Duration, out chan<- Chunk, direction int) bool {
	to := c.CurrentTime()
	from := to.Add(-window)

	spec := c.Filters
	spec.ScopeID = c.ScopeID
	spec.Timebase = c.Timebase
	spec.StartTime = from.Add(time.Second).UTC().Format(time.RFC3339)
	spec.StopTime = to.UTC().Format(time.RFC3339)

	events, err := c.Query.Query(ctx, spec)
	if err != nil {
		return c.send(ctx, out, Chunk{PlaybackRequestID: c.PlaybackRequestID})
	}
	ordering.SortGlobalTruthOrder(events, c.Timebase)
	if direction < 0 {
		reverse(events)
	}
	c.setCurrent(from)
	return c.send(ctx, out, Chunk{Events: events, PlaybackRequestID: c.PlaybackRequestID})
}

// stepBounded advances a bounded forward or reverse replay by one
// window and reports whether this was the final chunk. Windows tile
// without overlap: the boundary shared by two consecutive windows is
// inclusive only on the window reached last (the one closer to
// stopTime); the other window's query is shifted one second away from
// it, since the store compares timestamps at one-second resolution.
func (c *Cursor) stepBounded(ctx context.Context, window time.Duration, out chan<- Chunk, direction int) bool {
	stop := *c.StopTime
	cur := c.CurrentTime()

	var from, to time.Time
	var atEdge bool
	if direction > 0 {
		from, to = cur, cur.Add(window)
		if !to.Before(stop) {
			to = stop
			atEdge = true
		}
	} else {
		to, from = cur, cur.Add(-window)
		if !from.After(stop) {
			from = stop
			atEdge = true
		}
	}

	queryFrom, queryTo := from, to
	if direction > 0 && !atEdge {
		queryTo = to.Add(-time.Second)
	}
	if direction < 0 && !atEdge {
		queryFrom = from.Add(time.Second)
	}

	spec := c.Filters
	spec.ScopeID = c.ScopeID
	spec.Timebase = c.Timebase
	spec.StartTime = queryFrom.UTC().Format(time.RFC3339)
	spec.StopTime = queryTo.UTC().Format(time.RFC3339)

	events, err := c.Query.Query(ctx, spec)
	if err != nil {
		_ = c.send(ctx, out, Chunk{PlaybackRequestID: c.PlaybackRequestID, Done: true})
		return true
	}
	ordering.SortGlobalTruthOrder(events, c.Timebase)
	if direction < 0 {
		reverse(events)
		c.setCurrent(from)
	} else {
		c.setCurrent(to)
	}

	return !c.send(ctx, out, Chunk{Events: events, PlaybackRequestID: c.PlaybackRequestID, Done: atEdge}) || atEdge
}

func (c *Cursor) sleepPaced(ctx context.Context, window time.Duration) bool {
	rate := c.Rate
	if rate == 0 {
		rate = 1
	}
	d := time.Duration(float64(window) / math.Abs(rate))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Cursor) send(ctx context.Context, out chan<- Chunk, chunk Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func latestTime(events []event.Event, tb ordering.Timebase) time.Time {
	var latest time.Time
	for _, e := range events {
		ts := e.SourceTruthTime
		if tb == ordering.TimebaseCanonical {
			ts = e.CanonicalTruthTime
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err == nil && t.After(latest) {
			latest = t
		}
	}
	return latest
}

func reverse(events []event.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
