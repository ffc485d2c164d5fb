package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitalwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitalwatch_http_request_size_bytes",
			Help:    "HTTP request body size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 5),
		},
		[]string{"method", "route"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitalwatch_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "route"},
	)

	// Engine metrics
	EngineTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalwatch_engine_ticks_total",
			Help: "Total number of simulation ticks applied",
		},
	)

	EngineTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vitalwatch_engine_tick_duration_seconds",
			Help:    "Time taken to simulate, classify and store one tick",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	AlertsSynthesizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalwatch_alerts_synthesized_total",
			Help: "Total number of alerts raised from threshold violations",
		},
		[]string{"severity", "vital"},
	)

	AlertsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalwatch_alerts_evicted_total",
			Help: "Total number of alerts dropped by the store retention cap",
		},
	)

	AlertsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalwatch_alerts_resolved_total",
			Help: "Total number of resolve commands",
		},
		[]string{"result"}, // result: resolved, already_resolved, not_found, invalid
	)

	AlertsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitalwatch_alerts_active",
			Help: "Current number of unresolved alerts in the store",
		},
	)

	AlertStoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitalwatch_alert_store_size",
			Help: "Current number of alerts in the store",
		},
	)

	RemarksAddedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalwatch_remarks_added_total",
			Help: "Total number of remarks appended to patients",
		},
	)

	// Event pipeline metrics
	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalwatch_events_dropped_total",
			Help: "Total number of alert events dropped because the event queue was full",
		},
	)

	EventQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitalwatch_event_queue_size",
			Help: "Current number of alert events waiting to be published",
		},
	)

	EventQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitalwatch_event_queue_capacity",
			Help: "Capacity of the alert event queue",
		},
	)

	WorkerProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalwatch_worker_processed_total",
			Help: "Total number of alert events published by workers",
		},
	)

	WorkerFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalwatch_worker_failed_total",
			Help: "Total number of alert events workers failed to publish",
		},
	)

	WorkerBatchPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vitalwatch_worker_batch_publish_duration_seconds",
			Help:    "Time taken to publish a batch of alert events",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Kafka producer metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalwatch_kafka_publish_total",
			Help: "Total number of messages published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vitalwatch_kafka_publish_duration_seconds",
			Help:    "Time taken to publish to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalwatch_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	KafkaBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitalwatch_kafka_bytes_written_total",
			Help: "Total bytes of alert events written to Kafka",
		},
	)

	// Dashboard mirror metrics
	MirrorSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalwatch_mirror_sync_total",
			Help: "Total number of dashboard mirror syncs",
		},
		[]string{"status"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalwatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
