// Package metrics provides Prometheus metrics for the matchboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager manages all Prometheus metrics for the matchboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Ingestion metrics - what flows into the match store.
	submissionsReceived  prometheus.Counter
	submissionsRejected  prometheus.Counter
	ingestLatency        prometheus.Histogram
	canonicalReplaced    prometheus.Counter
	ambiguousGroups      prometheus.Counter
	canonicalMatchCount  prometheus.Gauge
	trackedIdentityCount prometheus.Gauge

	// Queue metrics.
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueEnqueueErrs *prometheus.CounterVec

	// Worker metrics.
	workerCount   prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  *prometheus.CounterVec

	// Storage metrics.
	storageErrors  prometheus.Counter
	storageLatency prometheus.Histogram

	// Query metrics.
	queryCacheHits   prometheus.Counter
	queryCacheMisses prometheus.Counter
	rankingLatency   prometheus.Histogram

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchboard",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	newCounter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
		m.registry.MustRegister(c)
		return c
	}
	newGauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
		m.registry.MustRegister(g)
		return g
	}
	newHistogram := func(name, help string) prometheus.Histogram {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
			Buckets: m.histogramBuckets,
		})
		m.registry.MustRegister(h)
		return h
	}
	newCounterVec := func(name, help string, labels []string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		}, labels)
		m.registry.MustRegister(c)
		return c
	}
	newHistogramVec := func(name, help string, labels []string) *prometheus.HistogramVec {
		h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
			Buckets: m.histogramBuckets,
		}, labels)
		m.registry.MustRegister(h)
		return h
	}

	m.submissionsReceived = newCounter("submissions_received_total", "Submissions accepted for ingestion")
	m.submissionsRejected = newCounter("submissions_rejected_total", "Submissions rejected at the boundary")
	m.ingestLatency = newHistogram("ingest_latency_ms", "End-to-end submission ingest latency in milliseconds")
	m.canonicalReplaced = newCounter("canonical_replacements_total", "Canonical match choices replaced by a later-winning submission")
	m.ambiguousGroups = newCounter("ambiguous_groups_total", "Submission groups split due to conflicting winner hints")
	m.canonicalMatchCount = newGauge("canonical_matches", "Canonical matches currently materialized")
	m.trackedIdentityCount = newGauge("identities", "Identities registered")

	m.queueSize = newGauge("queue_size", "Current number of queued submissions")
	m.queueCapacity = newGauge("queue_capacity", "Submission queue capacity")
	m.queueUtilization = newGauge("queue_utilization", "Submission queue utilization 0..1")
	m.queueEnqueues = newCounter("queue_enqueues_total", "Successful enqueues")
	m.queueDequeues = newCounter("queue_dequeues_total", "Successful dequeues")
	m.queueEnqueueErrs = newCounterVec("queue_enqueue_errors_total", "Enqueue failures by reason", []string{"reason"})

	m.workerCount = newGauge("workers", "Ingest worker goroutines")
	m.workerLatency = newHistogram("worker_latency_ms", "Per-submission worker processing latency in milliseconds")
	m.workerErrors = newCounterVec("worker_errors_total", "Worker failures by stage", []string{"stage"})

	m.storageErrors = newCounter("storage_errors_total", "Storage operation failures")
	m.storageLatency = newHistogram("storage_latency_ms", "Storage operation latency in milliseconds")

	m.queryCacheHits = newCounter("query_cache_hits_total", "Leaderboard cache hits")
	m.queryCacheMisses = newCounter("query_cache_misses_total", "Leaderboard cache misses")
	m.rankingLatency = newHistogram("ranking_latency_ms", "Leaderboard computation latency in milliseconds")

	m.httpRequests = newCounterVec("http_requests_total", "HTTP requests by endpoint, method and status", []string{"endpoint", "method", "status"})
	m.httpRequestDuration = newHistogramVec("http_request_duration_ms", "HTTP request duration in milliseconds", []string{"endpoint", "method", "status"})
	m.rateLimited = newCounter("rate_limited_total", "Requests rejected by the rate limiter")
}

// GetRegistry returns the custom prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers delegating to the global manager.

func RecordSubmissionReceived() { globalManager.submissionsReceived.Inc() }
func RecordSubmissionRejected() { globalManager.submissionsRejected.Inc() }
func RecordIngestLatency(ms float64) {
	globalManager.ingestLatency.Observe(ms)
}
func RecordCanonicalReplacement() { globalManager.canonicalReplaced.Inc() }
func RecordAmbiguousGroup()       { globalManager.ambiguousGroups.Inc() }
func UpdateCanonicalMatchCount(n int) {
	globalManager.canonicalMatchCount.Set(float64(n))
}
func UpdateIdentityCount(n int) {
	globalManager.trackedIdentityCount.Set(float64(n))
}

func UpdateQueueSize(n int)     { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }
func UpdateQueueUtilization(u float64) {
	globalManager.queueUtilization.Set(u)
}
func RecordQueueEnqueue() { globalManager.queueEnqueues.Inc() }
func RecordQueueDequeue() { globalManager.queueDequeues.Inc() }
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrs.WithLabelValues(reason).Inc()
}

func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }
func RecordWorkerLatency(ms float64) {
	globalManager.workerLatency.Observe(ms)
}
func RecordWorkerError(stage string) {
	globalManager.workerErrors.WithLabelValues(stage).Inc()
}

func RecordStorageError() { globalManager.storageErrors.Inc() }
func RecordStorageLatency(ms float64) {
	globalManager.storageLatency.Observe(ms)
}

func RecordQueryCacheHit()  { globalManager.queryCacheHits.Inc() }
func RecordQueryCacheMiss() { globalManager.queryCacheMisses.Inc() }
func RecordRankingLatency(ms float64) {
	globalManager.rankingLatency.Observe(ms)
}

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}
func RecordRateLimited() { globalManager.rateLimited.Inc() }
