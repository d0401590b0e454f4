package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "defect_ticket"

// Metrics holds the Prometheus collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpErrors       *prometheus.CounterVec
	classifications  *prometheus.CounterVec
	approvalsCreated *prometheus.CounterVec
	approvalsDecided *prometheus.CounterVec
	divergences      *prometheus.CounterVec
	resumeFailures   prometheus.Counter
	queueMessages    *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		httpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by route, method and error code",
		}, []string{"route", "method", "code"}),
		classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Persisted classifications by source and severity",
		}, []string{"source", "severity"}),
		approvalsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_created_total",
			Help:      "Approval requests created by gate",
		}, []string{"gate"}),
		approvalsDecided: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_decided_total",
			Help:      "Approval requests reaching a terminal status by gate",
		}, []string{"gate", "status"}),
		divergences: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_human_divergences_total",
			Help:      "Human decisions flagged as diverging from the AI recommendation",
		}, []string{"gate"}),
		resumeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_resume_failures_total",
			Help:      "Failed workflow resumption attempts",
		}),
		queueMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Inbound queue messages by outcome",
		}, []string{"outcome"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}

func (m *Metrics) RecordClassification(source, severity string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(source, severity).Inc()
}

func (m *Metrics) RecordApprovalCreated(gate string) {
	if m == nil {
		return
	}
	m.approvalsCreated.WithLabelValues(gate).Inc()
}

func (m *Metrics) RecordApprovalDecided(gate, status string, diverged bool) {
	if m == nil {
		return
	}
	m.approvalsDecided.WithLabelValues(gate, status).Inc()
	if diverged {
		m.divergences.WithLabelValues(gate).Inc()
	}
}

func (m *Metrics) RecordResumeFailure() {
	if m == nil {
		return
	}
	m.resumeFailures.Inc()
}

// RecordQueueMessage counts a drained message; outcome is processed or failed.
func (m *Metrics) RecordQueueMessage(outcome string) {
	if m == nil {
		return
	}
	m.queueMessages.WithLabelValues(outcome).Inc()
}
