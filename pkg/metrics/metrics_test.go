package metrics_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/peakyragnar/nova/pkg/metrics"
	"github.com/stretchr/testify/require"
)

// TestRecordersDoNotPanic exercises every recorder function; metrics
// is global package state, so this only asserts the calls are safe to
// make from every producing package, not any particular count.
func TestRecordersDoNotPanic(t *testing.T) {
	metrics.CommandSubmitted()
	metrics.CommandBlocked()
	metrics.CommandDispatchError()
	metrics.ExportCompleted()
	metrics.ExportFailed()
	metrics.CheckpointEmitted()
	metrics.ChunkEmitted(3)
	metrics.EventIngested("parsed")
	metrics.DuplicateSkipped("parsed")
	metrics.CursorStarted("leader")
	metrics.CursorStopped("leader")
	metrics.ObserveQueryDuration(10 * time.Millisecond)
}

func TestServeExposesMetricsEndpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- metrics.Serve(ctx, "127.0.0.1:19191") }()

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://127.0.0.1:19191/metrics")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "nova_commands_submitted_total"))

	cancel()
	require.NoError(t, <-errCh)
}
