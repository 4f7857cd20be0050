// Package metrics provides Prometheus metrics for the catalog service
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the catalog service
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Catalog metrics
	CatalogOperationsTotal   *prometheus.CounterVec
	CatalogOperationDuration *prometheus.HistogramVec
	ConflictRetriesTotal     *prometheus.CounterVec
	ValidationRejections     *prometheus.CounterVec
	CollectionsTotal         prometheus.Gauge

	// Document metrics
	DocumentWritesTotal *prometheus.CounterVec
	SearchResultsTotal  prometheus.Counter

	ServerStartTime time.Time
}

// NewMetrics creates the metrics and registers them with reg.
// A nil reg creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}
	factory := promauto.With(reg)

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doccatalog_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doccatalog_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "doccatalog_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.CatalogOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doccatalog_catalog_operations_total",
			Help: "Total number of catalog operations",
		},
		[]string{"operation", "status"},
	)

	m.CatalogOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doccatalog_catalog_operation_duration_seconds",
			Help:    "Duration of catalog operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.ConflictRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doccatalog_version_conflict_retries_total",
			Help: "Total number of metadata writes retried after a version conflict",
		},
		[]string{"operation"},
	)

	m.ValidationRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doccatalog_validation_rejections_total",
			Help: "Total number of values rejected by type checks or constraints",
		},
		[]string{"constraint"},
	)

	m.CollectionsTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "doccatalog_collections",
			Help: "Number of collections seen by the last listing",
		},
	)

	m.DocumentWritesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doccatalog_document_writes_total",
			Help: "Total number of document writes",
		},
		[]string{"operation", "status"},
	)

	m.SearchResultsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "doccatalog_search_results_total",
			Help: "Total number of search results returned",
		},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "doccatalog_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.ServerStartTime).Seconds() },
	)

	return m
}

// Status returns the label used for an operation outcome
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordCatalogOperation records a catalog operation
func (m *Metrics) RecordCatalogOperation(operation string, err error, duration time.Duration) {
	m.CatalogOperationsTotal.WithLabelValues(operation, Status(err)).Inc()
	m.CatalogOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordConflictRetry records one retried metadata write
func (m *Metrics) RecordConflictRetry(operation string) {
	m.ConflictRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordValidationRejection records a value rejected by the named constraint prefix
func (m *Metrics) RecordValidationRejection(prefix string) {
	m.ValidationRejections.WithLabelValues(prefix).Inc()
}

// RecordDocumentWrite records a document create, update or delete
func (m *Metrics) RecordDocumentWrite(operation string, err error) {
	m.DocumentWritesTotal.WithLabelValues(operation, Status(err)).Inc()
}
