// Package metrics provides Prometheus metrics for the Tribunal consensus engine.
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

// Manager manages all Prometheus metrics for the Tribunal service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core Business Metrics - What really matters for a consensus run
	itemsJudged      prometheus.Counter
	runsCompleted    prometheus.Counter
	runsFailed       prometheus.Counter
	aggregateUpserts prometheus.Counter
	needsReviewItems prometheus.Counter

	// Judge Metrics - Per-judge call behavior
	judgeRequests      *prometheus.CounterVec
	judgeRetries       *prometheus.CounterVec
	judgeLatency       *prometheus.HistogramVec
	schemaDegradations *prometheus.CounterVec
	invalidVerdicts    *prometheus.CounterVec
	rateLimitWait      *prometheus.HistogramVec

	// Repository Metrics - Stored record volumes
	repositoryRunCount       prometheus.Gauge
	repositoryJudgmentCount  prometheus.Gauge
	repositoryAggregateCount prometheus.Gauge
	repositoryUpdateLatency  prometheus.Histogram

	// Queue Metrics - Chunk queue performance
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - Processing performance
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
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
		namespace:        "tribunal",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Business Metrics
	m.itemsJudged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "items_judged_total",
		Help:      "Total number of items whose consensus row was computed",
	})

	m.runsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_completed_total",
		Help:      "Total number of runs that reached DONE",
	})

	m.runsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_failed_total",
		Help:      "Total number of runs that reached FAILED",
	})

	m.aggregateUpserts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_upserts_total",
		Help:      "Total number of consensus row upserts",
	})

	m.needsReviewItems = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "needs_review_items_total",
		Help:      "Total number of items flagged for human review",
	})

	// Judge Metrics
	m.judgeRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "judge_requests_total",
			Help:      "Total number of chat requests issued, per judge",
		},
		[]string{"judge"},
	)

	m.judgeRetries = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "judge_retries_total",
			Help:      "Total number of retried attempts, per judge",
		},
		[]string{"judge"},
	)

	m.judgeLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "judge_call_latency_milliseconds",
			Help:      "End-to-end judge call latency in milliseconds, per judge",
			Buckets:   m.histogramBuckets,
		},
		[]string{"judge"},
	)

	m.schemaDegradations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "schema_degradations_total",
			Help:      "Total number of calls degraded from json_schema to json_object, per judge",
		},
		[]string{"judge"},
	)

	m.invalidVerdicts = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "invalid_verdicts_total",
			Help:      "Total number of invalid verdict slots emitted, per judge",
		},
		[]string{"judge"},
	)

	m.rateLimitWait = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "rate_limit_wait_milliseconds",
			Help:      "Time spent waiting for token budget before a call, per judge",
			Buckets:   m.histogramBuckets,
		},
		[]string{"judge"},
	)

	// Repository Metrics
	m.repositoryRunCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_run_count",
		Help:      "Number of runs held in the store",
	})

	m.repositoryJudgmentCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_judgment_count",
		Help:      "Number of judgment records held in the store",
	})

	m.repositoryAggregateCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_aggregate_count",
		Help:      "Number of consensus rows held in the store",
	})

	m.repositoryUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_update_latency_milliseconds",
		Help:      "Repository update operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Queue Metrics
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the chunk queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of chunks enqueued",
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of chunks dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue errors",
	})

	m.queueProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_processing_latency_milliseconds",
		Help:      "Queue processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Worker Metrics
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Configured number of chunk workers",
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of workers currently judging a chunk",
	})

	m.workerIdleCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_idle_count",
		Help:      "Number of idle workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Chunk processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrorRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of worker errors",
	})

	// Enhanced Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
}

// RecordItemJudged increments the judged items counter.
func RecordItemJudged() {
	globalManager.itemsJudged.Inc()
}

// RecordRunCompleted increments the completed runs counter.
func RecordRunCompleted() {
	globalManager.runsCompleted.Inc()
}

// RecordRunFailed increments the failed runs counter.
func RecordRunFailed() {
	globalManager.runsFailed.Inc()
}

// RecordAggregateUpsert increments the consensus upsert counter.
func RecordAggregateUpsert() {
	globalManager.aggregateUpserts.Inc()
}

// RecordNeedsReview increments the review-flag counter.
func RecordNeedsReview() {
	globalManager.needsReviewItems.Inc()
}

// Judge Metrics Functions.

// RecordJudgeRequest counts one chat request for a judge.
func RecordJudgeRequest(judge string) {
	globalManager.judgeRequests.WithLabelValues(judge).Inc()
}

// RecordJudgeRetry counts one retried attempt for a judge.
func RecordJudgeRetry(judge string) {
	globalManager.judgeRetries.WithLabelValues(judge).Inc()
}

// RecordJudgeLatency records the end-to-end call latency for a judge.
func RecordJudgeLatency(judge string, latencyMs float64) {
	globalManager.judgeLatency.WithLabelValues(judge).Observe(latencyMs)
}

// RecordSchemaDegradation counts one structured-output downgrade for a judge.
func RecordSchemaDegradation(judge string) {
	globalManager.schemaDegradations.WithLabelValues(judge).Inc()
}

// RecordInvalidVerdicts counts invalid verdict slots emitted for a judge.
func RecordInvalidVerdicts(judge string, count int) {
	globalManager.invalidVerdicts.WithLabelValues(judge).Add(float64(count))
}

// RecordRateLimitWait records time spent waiting on the token budget.
func RecordRateLimitWait(judge string, waitMs float64) {
	globalManager.rateLimitWait.WithLabelValues(judge).Observe(waitMs)
}

// Repository Metrics Functions.

// UpdateRepositoryRunCount sets the number of stored runs.
func UpdateRepositoryRunCount(count int) {
	globalManager.repositoryRunCount.Set(float64(count))
}

// UpdateRepositoryJudgmentCount sets the number of stored judgments.
func UpdateRepositoryJudgmentCount(count int) {
	globalManager.repositoryJudgmentCount.Set(float64(count))
}

// UpdateRepositoryAggregateCount sets the number of stored consensus rows.
func UpdateRepositoryAggregateCount(count int) {
	globalManager.repositoryAggregateCount.Set(float64(count))
}

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records chunk processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
