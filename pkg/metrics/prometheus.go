// Package metrics provides Prometheus metrics for the clash conflict service.
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

// defaultLatencyBuckets are in milliseconds.
var defaultLatencyBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // constant slice

// Manager manages all Prometheus metrics for the clash service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Detection Metrics - How much conflict the calendar holds
	detectionsTotal   prometheus.Counter
	detectionLatency  prometheus.Histogram
	edgesByReason     *prometheus.CounterVec
	groupsByStatus    *prometheus.GaugeVec
	eventsConsidered  prometheus.Gauge
	unlocatedEvents   prometheus.Counter
	detectionsIndexed prometheus.Counter

	// Scoring Metrics
	scoresComputed        prometheus.Counter
	scoringLatency        prometheus.Histogram
	unavailableDimensions *prometheus.CounterVec

	// Resolution Metrics
	resolutionsTotal prometheus.Counter
	decisionsChanged prometheus.Counter

	// Settings Metrics - Rule and weight updates under optimistic locking
	settingsUpdates    *prometheus.CounterVec
	settingsCASRetries *prometheus.CounterVec

	// Catalog Metrics - Feed refreshes
	catalogRefreshes *prometheus.CounterVec
	catalogEvents    *prometheus.CounterVec
	catalogSize      prometheus.Gauge

	// Repository Metrics
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryRetries       prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

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
		namespace:        "clash",
		subsystem:        "conflicts",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Disabled managers still hand out live collectors, they just never
	// reach a scrape.
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Detection Metrics
	m.detectionsTotal = auto.NewCounter(m.counterOpts(
		"detections_total", "Total number of conflict detection passes"))
	m.detectionLatency = auto.NewHistogram(m.histogramOpts(
		"detection_latency_milliseconds", "Detection pass latency in milliseconds, scoring included", m.histogramBuckets))
	m.edgesByReason = auto.NewCounterVec(m.counterOpts(
		"edges_total", "Conflict edges raised by reason"), []string{"reason"})
	m.groupsByStatus = auto.NewGaugeVec(m.gaugeOpts(
		"groups", "Conflict groups in the last detection pass by status"), []string{"status"})
	m.eventsConsidered = auto.NewGauge(m.gaugeOpts(
		"events_considered", "Events considered by the last detection pass"))
	m.unlocatedEvents = auto.NewCounter(m.counterOpts(
		"unlocated_events_total", "Events skipped by distance rules because their location has no coordinate"))
	m.detectionsIndexed = auto.NewCounter(m.counterOpts(
		"detections_indexed_total", "Detection passes that used the weekly bucket index"))

	// Scoring Metrics
	m.scoresComputed = auto.NewCounter(m.counterOpts(
		"scores_computed_total", "Total number of event scores computed"))
	m.scoringLatency = auto.NewHistogram(m.histogramOpts(
		"scoring_latency_milliseconds", "Latency of a single event score in milliseconds", m.histogramBuckets))
	m.unavailableDimensions = auto.NewCounterVec(m.counterOpts(
		"unavailable_dimensions_total", "Score dimensions that were unavailable and counted as zero"), []string{"dimension"})

	// Resolution Metrics
	m.resolutionsTotal = auto.NewCounter(m.counterOpts(
		"resolutions_total", "Total number of accepted resolution batches"))
	m.decisionsChanged = auto.NewCounter(m.counterOpts(
		"decisions_changed_total", "Decisions inserted or changed by resolution batches"))

	// Settings Metrics
	m.settingsUpdates = auto.NewCounterVec(m.counterOpts(
		"settings_updates_total", "Rule and weight updates by setting and outcome"), []string{"setting", "outcome"})
	m.settingsCASRetries = auto.NewCounterVec(m.counterOpts(
		"settings_cas_retries_total", "Optimistic version conflicts retried by setting"), []string{"setting"})

	// Catalog Metrics
	m.catalogRefreshes = auto.NewCounterVec(m.counterOpts(
		"catalog_refreshes_total", "Catalog source refreshes by source and result"), []string{"source", "result"})
	m.catalogEvents = auto.NewCounterVec(m.counterOpts(
		"catalog_events_imported_total", "Events imported from catalog sources"), []string{"source"})
	m.catalogSize = auto.NewGauge(m.gaugeOpts(
		"catalog_events", "Events currently stored in the catalog"))

	// Repository Metrics
	m.repositoryUpdateLatency = auto.NewHistogram(m.histogramOpts(
		"repository_update_latency_milliseconds", "Repository write latency in milliseconds", m.histogramBuckets))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogramOpts(
		"repository_query_latency_milliseconds", "Repository read latency in milliseconds", m.histogramBuckets))
	m.repositoryRetries = auto.NewCounter(m.counterOpts(
		"repository_retries_total", "Transient SQLite errors retried by the repository"))

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds (user experience)", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total errors by component and error type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total errors by error type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total errors by HTTP endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts(
		"system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts(
		"system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Detection Metrics Functions.

// RecordDetection records one detection pass and its latency.
func RecordDetection(latencyMs float64, events int, indexed bool) {
	globalManager.detectionsTotal.Inc()
	globalManager.detectionLatency.Observe(latencyMs)
	globalManager.eventsConsidered.Set(float64(events))
	if indexed {
		globalManager.detectionsIndexed.Inc()
	}
}

// RecordEdges adds n edges raised for reason.
func RecordEdges(reason string, n int) {
	globalManager.edgesByReason.WithLabelValues(reason).Add(float64(n))
}

// UpdateGroupsByStatus sets the group count for status.
func UpdateGroupsByStatus(status string, count int) {
	globalManager.groupsByStatus.WithLabelValues(status).Set(float64(count))
}

// RecordUnlocatedEvents adds events excluded from distance rules.
func RecordUnlocatedEvents(n int) {
	globalManager.unlocatedEvents.Add(float64(n))
}

// Scoring Metrics Functions.

// RecordScore records one computed score and its latency.
func RecordScore(latencyMs float64) {
	globalManager.scoresComputed.Inc()
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordUnavailableDimension increments the unavailable counter for dimension.
func RecordUnavailableDimension(dimension string) {
	globalManager.unavailableDimensions.WithLabelValues(dimension).Inc()
}

// Resolution Metrics Functions.

// RecordResolution records an accepted batch and how many decisions changed.
func RecordResolution(changed int) {
	globalManager.resolutionsTotal.Inc()
	globalManager.decisionsChanged.Add(float64(changed))
}

// Settings Metrics Functions.

// RecordSettingsUpdate records a rule or weight update outcome.
func RecordSettingsUpdate(setting, outcome string) {
	globalManager.settingsUpdates.WithLabelValues(setting, outcome).Inc()
}

// RecordSettingsCASRetry records a version conflict that triggered a retry.
func RecordSettingsCASRetry(setting string) {
	globalManager.settingsCASRetries.WithLabelValues(setting).Inc()
}

// Catalog Metrics Functions.

// RecordCatalogRefresh records the result of refreshing one source.
func RecordCatalogRefresh(source, result string, imported int) {
	globalManager.catalogRefreshes.WithLabelValues(source, result).Inc()
	if imported > 0 {
		globalManager.catalogEvents.WithLabelValues(source).Add(float64(imported))
	}
}

// UpdateCatalogSize sets the number of stored catalog events.
func UpdateCatalogSize(count int) {
	globalManager.catalogSize.Set(float64(count))
}

// Repository Metrics Functions.

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryRetry increments the transient retry counter.
func RecordRepositoryRetry() {
	globalManager.repositoryRetries.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

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

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

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

// Configure replaces the global manager with one built from opts on a
// fresh registry. Call it once at startup, before serving.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
}

// RefreshInterval returns the gauge refresh interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
