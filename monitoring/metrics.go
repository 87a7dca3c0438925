// Package monitoring provides metrics and observability for the job feed backend
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed fetching metrics
	feedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_fetch_total",
			Help: "Total number of feed fetch attempts",
		},
		[]string{"url", "status"},
	)

	feedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobfeed_fetch_duration_seconds",
			Help:    "Duration of feed fetch operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"url", "status"},
	)

	feedItemsCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobfeed_items_count",
			Help:    "Number of job candidates extracted per feed",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"url"},
	)

	// Queue metrics
	queueItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_queue_items_total",
			Help: "Total number of queued items by terminal outcome",
		},
		[]string{"outcome"},
	)

	queueItemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobfeed_queue_item_duration_seconds",
			Help:    "Duration of queued item processing including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobfeed_queue_depth",
			Help: "Current number of items waiting in the queue",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobfeed_active_workers",
			Help: "Number of active queue workers",
		},
	)

	// Datastore metrics
	datastoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_datastore_operations_total",
			Help: "Total number of datastore operations",
		},
		[]string{"operation", "status"},
	)

	datastoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobfeed_datastore_operation_duration_seconds",
			Help:    "Duration of datastore operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// Import run metrics
	importRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_import_runs_total",
			Help: "Total number of import runs by terminal status",
		},
		[]string{"status"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobfeed_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
)

// RecordFeedFetch records one feed fetch attempt.
func RecordFeedFetch(url, status string, duration float64) {
	feedFetchTotal.WithLabelValues(url, status).Inc()
	feedFetchDuration.WithLabelValues(url, status).Observe(duration)
}

// RecordFeedItems records the number of candidates a feed yielded.
func RecordFeedItems(url string, count int) {
	feedItemsCount.WithLabelValues(url).Observe(float64(count))
}

// RecordQueueItem records a terminal queue item outcome.
func RecordQueueItem(outcome string, duration float64) {
	queueItemsTotal.WithLabelValues(outcome).Inc()
	queueItemDuration.WithLabelValues(outcome).Observe(duration)
}

// UpdateQueueDepth updates the queue depth gauge.
func UpdateQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// UpdateActiveWorkers updates the active workers gauge.
func UpdateActiveWorkers(count int) {
	activeWorkers.Set(float64(count))
}

// RecordDatastoreOperation records datastore operation metrics.
func RecordDatastoreOperation(operation, status string, duration float64) {
	datastoreOperations.WithLabelValues(operation, status).Inc()
	datastoreOperationDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordImportRun records an import run reaching a terminal status.
func RecordImportRun(status string) {
	importRunsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}
