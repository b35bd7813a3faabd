package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeFailOpen  = "fail_open"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Metrics holds all Prometheus metrics.
// All methods are safe on a nil receiver so collaborators can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	WebhookRequests  *prometheus.CounterVec
	StageTotal       *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	JobsInFlight     prometheus.Gauge
}

// New registers every metric on a dedicated registry, so repeated
// construction (tests, api+worker in one process) never collides.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WebhookRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_requests_total",
				Help: "Inbound CRM webhooks by gate outcome",
			},
			[]string{"outcome"},
		),
		StageTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_total",
				Help: "Pipeline stage executions by result",
			},
			[]string{"stage", "result"},
		),
		PipelineDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_duration_seconds",
				Help:    "End-to-end processing time of one webhook event",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		JobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_jobs_in_flight",
			Help: "Events currently being processed by workers",
		}),
	}
}

// Registry exposes the underlying registry (tests, custom exporters).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordWebhook(outcome string) {
	if m == nil {
		return
	}
	m.WebhookRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordStage(stage string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.StageTotal.WithLabelValues(stage, result).Inc()
}

func (m *Metrics) RecordPipeline(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsInFlight.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.JobsInFlight.Dec()
}
