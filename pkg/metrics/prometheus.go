// Package metrics provides Prometheus metrics for the quiver scoring service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the quiver service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Core Business Metrics - shot entry and round lifecycle
	shotsRecorded   prometheus.Counter
	shotsRevised    prometheus.Counter
	shotsRemoved    prometheus.Counter
	roundsStarted   prometheus.Counter
	roundsCompleted prometheus.Counter
	roundsCancelled prometheus.Counter
	roundsDeleted   prometheus.Counter

	// Aggregate recompute cost per mutation
	recomputeLatency prometheus.Histogram

	// Rating and Ranking Metrics - read-side query load
	ratingQueries  prometheus.Counter
	ratingNoData   prometheus.Counter
	rankingQueries *prometheus.CounterVec
	rankingLatency *prometheus.HistogramVec

	// Flush Pipeline Metrics - write-behind persistence
	flushQueueSize        prometheus.Gauge
	flushQueueCapacity    prometheus.Gauge
	flushQueueUtilization prometheus.Gauge
	flushEnqueues         prometheus.Counter
	flushDequeues         prometheus.Counter
	flushEnqueueErrors    prometheus.Counter
	flushCoalesced        prometheus.Counter
	flushLatency          prometheus.Histogram
	flushErrors           prometheus.Counter

	// Worker Metrics - flush worker pool
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Store Metrics - repository scale and latency
	storeRounds       prometheus.Gauge
	storeUsers        prometheus.Gauge
	storeQueryLatency prometheus.Histogram
	storeWriteLatency prometheus.Histogram

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "quiver",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Business Metrics
	m.shotsRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shots_recorded_total",
		Help:      "Total number of shots recorded",
	})

	m.shotsRevised = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shots_revised_total",
		Help:      "Total number of shot corrections (score or hit position)",
	})

	m.shotsRemoved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shots_removed_total",
		Help:      "Total number of shots removed (undo path)",
	})

	m.roundsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_started_total",
		Help:      "Total number of rounds started",
	})

	m.roundsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_completed_total",
		Help:      "Total number of rounds completed",
	})

	m.roundsCancelled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_cancelled_total",
		Help:      "Total number of rounds cancelled",
	})

	m.roundsDeleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_deleted_total",
		Help:      "Total number of rounds deleted (cascading ends and shots)",
	})

	m.recomputeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_recompute_latency_milliseconds",
		Help:      "Histogram of derived-total recompute latency per mutation in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Rating and Ranking Metrics
	m.ratingQueries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_queries_total",
		Help:      "Total number of archer rating computations",
	})

	m.ratingNoData = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_no_data_total",
		Help:      "Total number of rating queries answered with no-data (archer has no rounds)",
	})

	m.rankingQueries = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "ranking_queries_total",
			Help:      "Total number of ranking queries by engine",
		},
		[]string{"engine"},
	)

	m.rankingLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "ranking_query_latency_milliseconds",
			Help:      "Ranking query latency in milliseconds by engine",
			Buckets:   m.histogramBuckets,
		},
		[]string{"engine"},
	)

	// Flush Pipeline Metrics
	m.flushQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_queue_size",
		Help:      "Current number of rounds waiting for durable flush",
	})

	m.flushQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_queue_capacity",
		Help:      "Configured capacity of the flush queue",
	})

	m.flushQueueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_queue_utilization",
		Help:      "Flush queue utilization ratio (0.0 to 1.0)",
	})

	m.flushEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_enqueue_total",
		Help:      "Total number of flush requests enqueued",
	})

	m.flushDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_dequeue_total",
		Help:      "Total number of flush requests dequeued",
	})

	m.flushEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_enqueue_errors_total",
		Help:      "Total number of flush enqueue failures (closed or full queue)",
	})

	m.flushCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_coalesced_total",
		Help:      "Total number of flush requests coalesced with a pending one",
	})

	m.flushLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_latency_milliseconds",
		Help:      "Durable round flush latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.flushErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_errors_total",
		Help:      "Total number of failed durable flushes",
	})

	// Worker Metrics
	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Current number of active flush workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Flush worker end-to-end processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of flush worker errors",
	})

	// Store Metrics
	m.storeRounds = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_rounds",
		Help:      "Total number of rounds tracked by the live store",
	})

	m.storeUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_users",
		Help:      "Total number of archers tracked by the live store",
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Repository read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_write_latency_milliseconds",
		Help:      "Repository write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Garbage collection pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Package-level helpers operating on the global manager.

// RecordShotRecorded increments the recorded shots counter.
func RecordShotRecorded() {
	globalManager.shotsRecorded.Inc()
}

// RecordShotRevised increments the revised shots counter.
func RecordShotRevised() {
	globalManager.shotsRevised.Inc()
}

// RecordShotRemoved increments the removed shots counter.
func RecordShotRemoved() {
	globalManager.shotsRemoved.Inc()
}

// RecordRoundStarted increments the started rounds counter.
func RecordRoundStarted() {
	globalManager.roundsStarted.Inc()
}

// RecordRoundCompleted increments the completed rounds counter.
func RecordRoundCompleted() {
	globalManager.roundsCompleted.Inc()
}

// RecordRoundCancelled increments the cancelled rounds counter.
func RecordRoundCancelled() {
	globalManager.roundsCancelled.Inc()
}

// RecordRoundDeleted increments the deleted rounds counter.
func RecordRoundDeleted() {
	globalManager.roundsDeleted.Inc()
}

// RecordRecomputeLatency records derived-total recompute latency.
func RecordRecomputeLatency(latencyMs float64) {
	globalManager.recomputeLatency.Observe(latencyMs)
}

// RecordRatingQuery increments the rating query counter.
func RecordRatingQuery() {
	globalManager.ratingQueries.Inc()
}

// RecordRatingNoData increments the rating no-data counter.
func RecordRatingNoData() {
	globalManager.ratingNoData.Inc()
}

// RecordRankingQuery increments the ranking query counter for an engine.
func RecordRankingQuery(engine string) {
	globalManager.rankingQueries.WithLabelValues(engine).Inc()
}

// RecordRankingLatency records ranking query latency for an engine.
func RecordRankingLatency(engine string, latencyMs float64) {
	globalManager.rankingLatency.WithLabelValues(engine).Observe(latencyMs)
}

// UpdateFlushQueueSize updates the flush queue size gauge.
func UpdateFlushQueueSize(size int) {
	globalManager.flushQueueSize.Set(float64(size))
}

// UpdateFlushQueueCapacity updates the flush queue capacity gauge.
func UpdateFlushQueueCapacity(capacity int) {
	globalManager.flushQueueCapacity.Set(float64(capacity))
}

// UpdateFlushQueueUtilization updates the flush queue utilization gauge.
func UpdateFlushQueueUtilization(utilization float64) {
	globalManager.flushQueueUtilization.Set(utilization)
}

// RecordFlushEnqueue increments the flush enqueue counter.
func RecordFlushEnqueue() {
	globalManager.flushEnqueues.Inc()
}

// RecordFlushDequeue increments the flush dequeue counter.
func RecordFlushDequeue() {
	globalManager.flushDequeues.Inc()
}

// RecordFlushEnqueueError increments the flush enqueue error counter.
func RecordFlushEnqueueError() {
	globalManager.flushEnqueueErrors.Inc()
}

// RecordFlushCoalesced increments the coalesced flush counter.
func RecordFlushCoalesced() {
	globalManager.flushCoalesced.Inc()
}

// RecordFlushLatency records durable flush latency.
func RecordFlushLatency(latencyMs float64) {
	globalManager.flushLatency.Observe(latencyMs)
}

// RecordFlushError increments the flush error counter.
func RecordFlushError() {
	globalManager.flushErrors.Inc()
}

// UpdateWorkerActiveCount updates the active flush worker gauge.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records flush worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateStoreRounds updates the store round count gauge.
func UpdateStoreRounds(count int) {
	globalManager.storeRounds.Set(float64(count))
}

// UpdateStoreUsers updates the store user count gauge.
func UpdateStoreUsers(count int) {
	globalManager.storeUsers.Set(float64(count))
}

// RecordStoreQueryLatency records repository read latency.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordStoreWriteLatency records repository write latency.
func RecordStoreWriteLatency(latencyMs float64) {
	globalManager.storeWriteLatency.Observe(latencyMs)
}

// UpdateSystemMemoryUsage updates the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
