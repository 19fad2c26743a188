// Package metrics exposes the service's Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Attempt outcomes recorded by the render orchestrator.
const (
	AttemptAccepted = "accepted"
	AttemptRejected = "rejected"
	AttemptError    = "error"
)

// Collector holds the metric vectors. All methods are safe on a nil
// Collector.
type Collector struct {
	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Rendering
	renderAttemptsTotal  *prometheus.CounterVec
	faithfulnessScores   *prometheus.HistogramVec
	renderSettledTotal   *prometheus.CounterVec
	renderJobDuration    *prometheus.HistogramVec
	renderJobsInProgress prometheus.Gauge

	// External calls
	externalCallsTotal   *prometheus.CounterVec
	externalCallDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the metrics on reg. Passing a fresh
// prometheus.NewRegistry keeps tests independent of the default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.renderAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_attempts_total",
			Help:      "Total number of generation attempts by outcome",
		},
		[]string{"render_type", "outcome"},
	)

	c.faithfulnessScores = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "faithfulness_score",
			Help:      "Faithfulness scores returned by the evaluator",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"render_type"},
	)

	c.renderSettledTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_jobs_settled_total",
			Help:      "Total number of render jobs settled by status and image source",
		},
		[]string{"render_type", "status", "source"},
	)

	c.renderJobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_job_duration_seconds",
			Help:      "Render job duration from start to settlement in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"render_type"},
	)

	c.renderJobsInProgress = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "render_jobs_in_progress",
			Help:      "Number of render jobs currently running",
		},
	)

	c.externalCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Total number of calls to external services",
		},
		[]string{"service", "status"},
	)

	c.externalCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "External call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (c *Collector) RecordRenderAttempt(renderType, outcome string) {
	if c == nil {
		return
	}
	c.renderAttemptsTotal.WithLabelValues(renderType, outcome).Inc()
}

func (c *Collector) ObserveFaithfulness(renderType string, score int) {
	if c == nil {
		return
	}
	c.faithfulnessScores.WithLabelValues(renderType).Observe(float64(score))
}

func (c *Collector) RenderStarted() {
	if c == nil {
		return
	}
	c.renderJobsInProgress.Inc()
}

// RecordSettlement closes a job opened with RenderStarted.
func (c *Collector) RecordSettlement(renderType, status, source string, duration time.Duration) {
	if c == nil {
		return
	}
	c.renderJobsInProgress.Dec()
	c.renderSettledTotal.WithLabelValues(renderType, status, source).Inc()
	c.renderJobDuration.WithLabelValues(renderType).Observe(duration.Seconds())
}

func (c *Collector) RecordExternalCall(service, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.externalCallsTotal.WithLabelValues(service, status).Inc()
	c.externalCallDuration.WithLabelValues(service).Observe(duration.Seconds())
}
