// Package metrics exposes the hub's Prometheus instrumentation.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Prometheus metrics for the hub.
//
// All metrics use the "silo_" prefix. Methods handle a nil receiver
// gracefully, so a nil *Metrics acts as a no-op when metrics are
// disabled.
type Metrics struct {
	// HTTPRequests counts served requests.
	// Labels: method, route, status
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration tracks request latency by route.
	// Labels: method, route
	HTTPDuration *prometheus.HistogramVec

	// StorageOperations tracks object-store call latency by operation
	// and result.
	// Labels: operation, result=[ok, error]
	StorageOperations *prometheus.HistogramVec

	// Commits counts commit attempts by result.
	// Labels: result=[ok, rejected, error]
	Commits *prometheus.CounterVec

	// BlobsSwept counts blobs reclaimed by the GC sweeper.
	BlobsSwept prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// New creates and registers the hub metrics.
//
// If registerer is nil, prometheus.DefaultRegisterer is used. The
// function is idempotent; repeated calls return the same instance.
func New(registerer prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &Metrics{
			HTTPRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "silo_http_requests_total",
					Help: "Total HTTP requests by method, route and status",
				},
				[]string{"method", "route", "status"},
			),
			HTTPDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "silo_http_request_duration_seconds",
					Help:    "HTTP request latency by method and route",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
			StorageOperations: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "silo_storage_operation_duration_seconds",
					Help:    "Object store call latency by operation and result",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation", "result"},
			),
			Commits: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "silo_commits_total",
					Help: "Commit attempts by result",
				},
				[]string{"result"},
			),
			BlobsSwept: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "silo_gc_blobs_swept_total",
					Help: "External blobs reclaimed by the GC sweeper",
				},
			),
		}

		registerer.MustRegister(
			m.HTTPRequests,
			m.HTTPDuration,
			m.StorageOperations,
			m.Commits,
			m.BlobsSwept,
		)
		metricsInstance = m
	})
	return metricsInstance
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveOperation records one object-store call. It satisfies the S3
// store's metrics hook.
func (m *Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StorageOperations.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// ObserveCommit records one commit attempt.
func (m *Metrics) ObserveCommit(result string) {
	if m == nil {
		return
	}
	m.Commits.WithLabelValues(result).Inc()
}

// AddBlobsSwept records reclaimed blobs.
func (m *Metrics) AddBlobsSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BlobsSwept.Add(float64(n))
}
