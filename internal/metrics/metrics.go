package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plantwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Monitoring metrics
	ReadingsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwatch_readings_total",
			Help: "Total readings evaluated, by machine and status",
		},
		[]string{"machine", "status"},
	)

	CriticalTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwatch_critical_trips_total",
			Help: "Monitoring loops halted by a critical reading",
		},
		[]string{"machine"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plantwatch_evaluation_duration_seconds",
			Help:    "Time spent in threshold evaluation",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 6),
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwatch_store_errors_total",
			Help: "Failed reading inserts",
		},
		[]string{"machine"},
	)

	// Worker metrics
	WorkerQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plantwatch_worker_queue_size",
			Help: "Current size of the publish queue",
		},
	)

	WorkerQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plantwatch_worker_queue_capacity",
			Help: "Capacity of the publish queue",
		},
	)

	WorkerProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plantwatch_worker_processed_total",
			Help: "Total readings published by workers",
		},
	)

	WorkerFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plantwatch_worker_failed_total",
			Help: "Total readings that failed in workers",
		},
	)

	WorkerBatchPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plantwatch_worker_batch_publish_duration_seconds",
			Help:    "Time taken to publish a batch downstream",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Stream publisher metrics
	StreamPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwatch_stream_publish_total",
			Help: "Total readings published to the stream",
		},
		[]string{"status"}, // status: success, failed
	)

	StreamPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plantwatch_stream_publish_duration_seconds",
			Help:    "Time taken to publish to the stream",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	StreamPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plantwatch_stream_publish_retries_total",
			Help: "Total stream publish retries",
		},
	)

	StreamBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plantwatch_stream_bytes_written_total",
			Help: "Total bytes written to the stream",
		},
	)

	// MQTT ingest metrics
	MQTTMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwatch_mqtt_messages_total",
			Help: "MQTT parameter sets received, by machine and outcome",
		},
		[]string{"machine", "outcome"}, // outcome: accepted, rejected
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantwatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
