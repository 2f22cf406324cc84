// Package metrics provides Prometheus metrics for the seasonboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the seasonboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Tally cache
	cacheLookups   *prometheus.CounterVec
	cacheSyncs     *prometheus.CounterVec
	cacheFallbacks prometheus.Counter
	cacheClears    prometheus.Counter

	// Ledger reader
	ledgerCalls       *prometheus.CounterVec
	ledgerCallLatency *prometheus.HistogramVec
	ledgerInFlight    prometheus.Gauge

	// Ranking engine
	rankingComputeLatency *prometheus.HistogramVec
	rankingEntries        prometheus.Gauge
	rankingDegraded       prometheus.Counter

	// Finalization
	finalizations       *prometheus.CounterVec
	snapshotRowsWritten prometheus.Counter
	integrityChecks     *prometheus.CounterVec
	snapshotsDeleted    prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
	catalogItems         prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "seasonboard",
		subsystem:        "",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.cacheLookups = auto.NewCounterVec(
		m.counterOpts("tally_cache_lookups_total", "Tally cache lookups by result (hit, miss, stale)"),
		[]string{"result"},
	)
	m.cacheSyncs = auto.NewCounterVec(
		m.counterOpts("tally_cache_syncs_total", "Ledger resyncs written through the tally cache by outcome"),
		[]string{"outcome"},
	)
	m.cacheFallbacks = auto.NewCounter(
		m.counterOpts("tally_cache_fallbacks_total", "Lookups answered with the caller-supplied fallback tally"),
	)
	m.cacheClears = auto.NewCounter(
		m.counterOpts("tally_cache_clears_total", "Explicit tally cache invalidations"),
	)

	m.ledgerCalls = auto.NewCounterVec(
		m.counterOpts("ledger_calls_total", "Ledger contract calls by method and outcome"),
		[]string{"method", "outcome"},
	)
	m.ledgerCallLatency = auto.NewHistogramVec(
		m.histogramOpts("ledger_call_latency_milliseconds", "Ledger contract call latency in milliseconds", m.histogramBuckets),
		[]string{"method"},
	)
	m.ledgerInFlight = auto.NewGauge(
		m.gaugeOpts("ledger_calls_in_flight", "Ledger contract calls currently in flight"),
	)

	m.rankingComputeLatency = auto.NewHistogramVec(
		m.histogramOpts("ranking_compute_latency_milliseconds", "Leaderboard computation latency by source", m.histogramBuckets),
		[]string{"source"},
	)
	m.rankingEntries = auto.NewGauge(
		m.gaugeOpts("ranking_entries", "Number of ranked entries in the last computed leaderboard"),
	)
	m.rankingDegraded = auto.NewCounter(
		m.counterOpts("ranking_degraded_total", "Leaderboards computed from the ledger fallback path"),
	)

	m.finalizations = auto.NewCounterVec(
		m.counterOpts("finalizations_total", "Season finalization attempts by outcome"),
		[]string{"outcome"},
	)
	m.snapshotRowsWritten = auto.NewCounter(
		m.counterOpts("snapshot_rows_written_total", "Finalized snapshot rows persisted"),
	)
	m.integrityChecks = auto.NewCounterVec(
		m.counterOpts("snapshot_integrity_checks_total", "Snapshot integrity verifications by result"),
		[]string{"result"},
	)
	m.snapshotsDeleted = auto.NewCounter(
		m.counterOpts("snapshot_seasons_deleted_total", "Finalized seasons removed by retention cleanup"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
	m.catalogItems = auto.NewGauge(m.gaugeOpts("catalog_items", "Items currently loaded from the catalog"))
}

// Tally cache.

// RecordCacheLookup counts a cache lookup; result is hit, miss or stale.
func RecordCacheLookup(result string) {
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheSync counts a ledger resync; outcome is ok or error.
func RecordCacheSync(outcome string) {
	globalManager.cacheSyncs.WithLabelValues(outcome).Inc()
}

// RecordCacheFallback counts a lookup answered with the caller default.
func RecordCacheFallback() {
	globalManager.cacheFallbacks.Inc()
}

// RecordCacheClear counts an explicit invalidation.
func RecordCacheClear() {
	globalManager.cacheClears.Inc()
}

// Ledger reader.

// RecordLedgerCall records a contract call outcome and its latency.
func RecordLedgerCall(method, outcome string, latencyMs float64) {
	globalManager.ledgerCalls.WithLabelValues(method, outcome).Inc()
	globalManager.ledgerCallLatency.WithLabelValues(method).Observe(latencyMs)
}

// AddLedgerInFlight adjusts the in-flight ledger call gauge.
func AddLedgerInFlight(delta int) {
	globalManager.ledgerInFlight.Add(float64(delta))
}

// Ranking engine.

// RecordRankingCompute records how long a leaderboard took; source is cache,
// ledger or snapshot.
func RecordRankingCompute(source string, latencyMs float64, entries int) {
	globalManager.rankingComputeLatency.WithLabelValues(source).Observe(latencyMs)
	globalManager.rankingEntries.Set(float64(entries))
}

// RecordRankingDegraded counts leaderboards served from the ledger fallback.
func RecordRankingDegraded() {
	globalManager.rankingDegraded.Inc()
}

// Finalization.

// RecordFinalization counts a finalization attempt by outcome.
func RecordFinalization(outcome string) {
	globalManager.finalizations.WithLabelValues(outcome).Inc()
}

// RecordSnapshotRowsWritten adds persisted snapshot rows.
func RecordSnapshotRowsWritten(n int) {
	globalManager.snapshotRowsWritten.Add(float64(n))
}

// RecordIntegrityCheck counts a verification; result is ok or mismatch.
func RecordIntegrityCheck(result string) {
	globalManager.integrityChecks.WithLabelValues(result).Inc()
}

// RecordSnapshotsDeleted adds seasons removed by cleanup.
func RecordSnapshotsDeleted(n int64) {
	globalManager.snapshotsDeleted.Add(float64(n))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// UpdateCatalogItems sets the number of catalog items.
func UpdateCatalogItems(count int) {
	globalManager.catalogItems.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
