// Package observability provides Prometheus metrics for backend calls and the
// HTTP surface.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendBuckets spans fast metadata calls up to slow index builds.
var BackendBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

var (
	// BackendRequestsTotal counts backend operations by operation, collection and status.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casebase_backend_requests_total",
			Help: "Backend requests",
		},
		[]string{"operation", "collection", "status"},
	)

	// BackendDuration records backend operation latency in seconds.
	BackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casebase_backend_request_duration_seconds",
			Help:    "Backend request duration",
			Buckets: BackendBuckets,
		},
		[]string{"operation", "collection"},
	)

	// RecordsInsertedTotal counts rows accepted by insert calls.
	RecordsInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casebase_records_inserted_total",
			Help: "Inserted records",
		},
		[]string{"collection"},
	)

	// PipelineStage is the index of the last completed pipeline stage.
	PipelineStage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "casebase_pipeline_stage",
			Help: "Last completed pipeline stage (0=uninitialized .. 5=ready)",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by route and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casebase_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casebase_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		BackendRequestsTotal,
		BackendDuration,
		RecordsInsertedTotal,
		PipelineStage,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveBackend records one backend call that started at start.
func ObserveBackend(operation, collection string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BackendRequestsTotal.WithLabelValues(operation, collection, status).Inc()
	BackendDuration.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
}
