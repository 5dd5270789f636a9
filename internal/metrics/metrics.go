// Package metrics provides the Prometheus metrics for SpeciesSight.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for pipeline stages.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
)

// Metrics contains the pipeline and HTTP metrics.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	StageTotal    *prometheus.CounterVec

	// Confidence of successful classifications, for spotting model drift.
	ClassificationConfidence prometheus.Histogram

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the metrics and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speciessight_pipeline_stage_duration_seconds",
			Help:    "Time taken by each AI pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"stage"},
	)
	m.StageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speciessight_pipeline_stage_total",
			Help: "Total number of AI pipeline stage runs partitioned by outcome",
		},
		[]string{"stage", "outcome"},
	)
	m.ClassificationConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "speciessight_classification_confidence",
			Help:    "Confidence reported by successful classifications",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)
	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speciessight_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speciessight_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.StageDuration.Describe(ch)
	m.StageTotal.Describe(ch)
	m.ClassificationConfidence.Describe(ch)
	m.HTTPRequests.Describe(ch)
	m.HTTPRequestDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.StageDuration.Collect(ch)
	m.StageTotal.Collect(ch)
	m.ClassificationConfidence.Collect(ch)
	m.HTTPRequests.Collect(ch)
	m.HTTPRequestDuration.Collect(ch)
}

// ObserveStage records one pipeline stage run. Safe on a nil receiver so
// callers without metrics need no branches.
func (m *Metrics) ObserveStage(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	m.StageTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveConfidence records a successful classification confidence.
func (m *Metrics) ObserveConfidence(confidence float64) {
	if m == nil {
		return
	}
	m.ClassificationConfidence.Observe(confidence)
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
