// Package metrics exposes NOVA's ambient Prometheus instrumentation —
// spec.md carries no metrics module of its own, but instance health
// is always observable regardless of which features a deployment
// turns on. Counters and gauges are package-level, following the same
// global-registration idiom as the teacher pack's prometheus usage
// (etalazz-vsa's internal/ratelimiter/telemetry/churn/prom_counters.go):
// every public function here is a cheap, always-safe call from a hot
// path, not a constructor dependency every caller has to thread
// through.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nova_events_ingested_total",
		Help: "Total events successfully inserted, by lane.",
	}, []string{"lane"})

	duplicatesSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nova_duplicates_skipped_total",
		Help: "Total ingest calls that hit an existing eventId and were skipped.",
	}, []string{"lane"})

	commandsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nova_commands_submitted_total",
		Help: "Total commands recorded and dispatched by the command manager.",
	})

	commandsBlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nova_commands_blocked_total",
		Help: "Total command submissions rejected because the timeline was in replay mode.",
	})

	commandDispatchErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nova_command_dispatch_errors_total",
		Help: "Total commands whose dispatcher call failed, recording a synthetic failure result.",
	})

	streamCursorsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nova_stream_cursors_active",
		Help: "Currently running streaming cursors, by role.",
	}, []string{"role"})

	streamChunksEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nova_stream_chunks_emitted_total",
		Help: "Total chunks emitted across all streaming cursors.",
	})

	streamEventsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nova_stream_events_emitted_total",
		Help: "Total events delivered across all streaming cursors.",
	})

	exportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nova_exports_total",
		Help: "Total file exports completed.",
	})

	exportErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nova_export_errors_total",
		Help: "Total file export attempts that failed.",
	})

	queryDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nova_query_duration_seconds",
		Help:    "Bounded query latency.",
		Buckets: prometheus.DefBuckets,
	})

	checkpointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nova_ui_checkpoints_total",
		Help: "Total UI-state checkpoints emitted.",
	})
)

func init() {
	prometheus.MustRegister(
		eventsIngestedTotal,
		duplicatesSkippedTotal,
		commandsSubmittedTotal,
		commandsBlockedTotal,
		commandDispatchErrorsTotal,
		streamCursorsActive,
		streamChunksEmittedTotal,
		streamEventsEmittedTotal,
		exportsTotal,
		exportErrorsTotal,
		queryDurationSeconds,
		checkpointsTotal,
	)
}

// EventIngested records one successfully inserted event in lane.
func EventIngested(lane string) {
	eventsIngestedTotal.WithLabelValues(lane).Inc()
}

// DuplicateSkipped records one ingest call short-circuited by an
// existing eventId.
func DuplicateSkipped(lane string) {
	duplicatesSkippedTotal.WithLabelValues(lane).Inc()
}

// CommandSubmitted records one command recorded and dispatched.
func CommandSubmitted() {
	commandsSubmittedTotal.Inc()
}

// CommandBlocked records one command rejected for replay mode.
func CommandBlocked() {
	commandsBlockedTotal.Inc()
}

// CommandDispatchError records one dispatcher failure.
func CommandDispatchError() {
	commandDispatchErrorsTotal.Inc()
}

// CursorStarted increments the active-cursor gauge for role.
func CursorStarted(role string) {
	streamCursorsActive.WithLabelValues(role).Inc()
}

// CursorStopped decrements the active-cursor gauge for role.
func CursorStopped(role string) {
	streamCursorsActive.WithLabelValues(role).Dec()
}

// ChunkEmitted records one streaming chunk carrying n events.
func ChunkEmitted(n int) {
	streamChunksEmittedTotal.Inc()
	streamEventsEmittedTotal.Add(float64(n))
}

// ExportCompleted records one successful export run.
func ExportCompleted() {
	exportsTotal.Inc()
}

// ExportFailed records one failed export run.
func ExportFailed() {
	exportErrorsTotal.Inc()
}

// ObserveQueryDuration records how long one bounded query took.
func ObserveQueryDuration(d time.Duration) {
	queryDurationSeconds.Observe(d.Seconds())
}

// CheckpointEmitted records one UI-state checkpoint.
func CheckpointEmitted() {
	checkpointsTotal.Inc()
}
