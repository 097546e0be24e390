// Package metrics defines Prometheus metrics for the retrace engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrace_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrace_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrace_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	AuditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrace_audit_records_total",
			Help: "Audit records created, by action and entity type",
		},
		[]string{"action", "entity_type"},
	)

	VersionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retrace_version_conflicts_total",
			Help: "Version sequencer retries caused by concurrent writers",
		},
	)

	ReconstructionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrace_reconstructions_total",
			Help: "Revision materializations, by entity type",
		},
		[]string{"entity_type"},
	)

	PublisherQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "retrace_publisher_queue_depth",
			Help: "Current audit event publisher queue depth",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "retrace_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		AuditRecordsTotal, VersionConflictsTotal, ReconstructionsTotal,
		PublisherQueueDepth, WSConnections,
	)
}
