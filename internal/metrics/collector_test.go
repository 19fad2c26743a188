package metrics_test

import (
	"net/http"
	"testing"
	"time"

	"floorplan-render-backend/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RenderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector("floorplan", reg, nil)

	c.RecordRenderAttempt("isometric", metrics.AttemptRejected)
	c.RecordRenderAttempt("isometric", metrics.AttemptRejected)
	c.RecordRenderAttempt("isometric", metrics.AttemptAccepted)
	c.ObserveFaithfulness("isometric", 92)
	c.RenderStarted()
	c.RecordSettlement("isometric", "completed", "generated", 3*time.Second)

	count, err := testutil.GatherAndCount(reg, "floorplan_render_attempts_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "floorplan_render_jobs_settled_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollector_HTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector("floorplan", reg, nil)

	c.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	c.RecordExternalCall("imagen", "ok", time.Second)

	count, err := testutil.GatherAndCount(reg, "floorplan_http_requests_total", "floorplan_external_calls_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *metrics.Collector
	assert.NotPanics(t, func() {
		c.RecordRenderAttempt("room_wise", metrics.AttemptError)
		c.ObserveFaithfulness("room_wise", 10)
		c.RenderStarted()
		c.RecordSettlement("room_wise", "failed", "", time.Second)
		c.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		c.RecordExternalCall("vision", "error", time.Second)
	})
}
