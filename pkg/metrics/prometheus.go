// Package metrics provides Prometheus metrics for the dosetrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Coordinator
	mutations      *prometheus.CounterVec
	normalizations prometheus.Counter
	dosesRecorded  *prometheus.CounterVec
	schedulesTotal prometheus.Gauge
	doseEventTotal prometheus.Gauge

	// Views and analytics
	todaySlots         *prometheus.GaugeVec
	droppedSlots       prometheus.Counter
	reconcileLatency   prometheus.Histogram
	analyticsLatency   *prometheus.HistogramVec
	analyticsCancelled *prometheus.CounterVec

	// History
	historyAppended prometheus.Counter
	historyPruned   prometheus.Counter

	// Repositories
	repositoryErrors *prometheus.CounterVec

	// Job queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	jobErrors          *prometheus.CounterVec
	workerActiveCount  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dosetrack",
		subsystem:        "core",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      prometheus.Labels{},
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
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.mutations = auto.NewCounterVec(
		m.counterOpts("mutations_total", "Coordinator mutations by operation and result"),
		[]string{"op", "result"},
	)
	m.normalizations = auto.NewCounter(
		m.counterOpts("schedule_normalizations_total", "Schedules auto-corrected during validation"),
	)
	m.dosesRecorded = auto.NewCounterVec(
		m.counterOpts("doses_recorded_total", "Recorded dose events by derived status"),
		[]string{"status"},
	)
	m.schedulesTotal = auto.NewGauge(m.gaugeOpts("schedules", "Schedules held in the current snapshot"))
	m.doseEventTotal = auto.NewGauge(m.gaugeOpts("dose_events", "Dose events held in the current snapshot"))

	m.todaySlots = auto.NewGaugeVec(
		m.gaugeOpts("today_slots", "Today's due slots by reconciled status"),
		[]string{"status"},
	)
	m.droppedSlots = auto.NewCounter(
		m.counterOpts("view_dropped_slots_total", "Slots omitted from views because their subject could not be resolved"),
	)
	m.reconcileLatency = auto.NewHistogram(
		m.histogramOpts("reconcile_latency_milliseconds", "Time spent reconciling a view in milliseconds"),
	)
	m.analyticsLatency = auto.NewHistogramVec(
		m.histogramOpts("analytics_latency_milliseconds", "Analytics query latency in milliseconds"),
		[]string{"query"},
	)
	m.analyticsCancelled = auto.NewCounterVec(
		m.counterOpts("analytics_cancelled_total", "Analytics queries aborted by cancellation"),
		[]string{"query"},
	)

	m.historyAppended = auto.NewCounter(m.counterOpts("history_appended_total", "History records appended"))
	m.historyPruned = auto.NewCounter(m.counterOpts("history_pruned_total", "History records removed by retention"))

	m.repositoryErrors = auto.NewCounterVec(
		m.counterOpts("repository_errors_total", "Repository failures by repository and operation"),
		[]string{"repository", "op"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("job_queue_size", "Jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("job_queue_capacity", "Maximum job queue capacity"))
	m.queueEnqueueErrors = auto.NewCounterVec(
		m.counterOpts("job_queue_enqueue_errors_total", "Rejected job submissions by reason"),
		[]string{"reason"},
	)
	m.jobDuration = auto.NewHistogramVec(
		m.histogramOpts("job_duration_milliseconds", "Background job duration in milliseconds"),
		[]string{"job"},
	)
	m.jobErrors = auto.NewCounterVec(
		m.counterOpts("job_errors_total", "Background job failures"),
		[]string{"job"},
	)
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Running job workers"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap allocation in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds"),
	)
}

// RecordMutation counts a coordinator mutation; result is "ok", "not_found" or "error".
func RecordMutation(op, result string) {
	globalManager.mutations.WithLabelValues(op, result).Inc()
}

// RecordNormalization counts a schedule that was auto-corrected.
func RecordNormalization() {
	globalManager.normalizations.Inc()
}

// RecordDose counts a recorded dose event by status.
func RecordDose(status string) {
	globalManager.dosesRecorded.WithLabelValues(status).Inc()
}

// UpdateSnapshotSize sets the schedule and dose event gauges.
func UpdateSnapshotSize(schedules, doseEvents int) {
	globalManager.schedulesTotal.Set(float64(schedules))
	globalManager.doseEventTotal.Set(float64(doseEvents))
}

// UpdateTodaySlots sets the today view gauge for one status.
func UpdateTodaySlots(status string, count int) {
	globalManager.todaySlots.WithLabelValues(status).Set(float64(count))
}

// RecordDroppedSlots adds slots that were omitted from a view.
func RecordDroppedSlots(count int) {
	if count > 0 {
		globalManager.droppedSlots.Add(float64(count))
	}
}

// RecordReconcileLatency records view reconciliation latency in milliseconds.
func RecordReconcileLatency(latencyMs float64) {
	globalManager.reconcileLatency.Observe(latencyMs)
}

// RecordAnalyticsLatency records analytics latency in milliseconds.
func RecordAnalyticsLatency(query string, latencyMs float64) {
	globalManager.analyticsLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordAnalyticsCancelled counts a cancelled analytics query.
func RecordAnalyticsCancelled(query string) {
	globalManager.analyticsCancelled.WithLabelValues(query).Inc()
}

// RecordHistoryAppended counts an appended history record.
func RecordHistoryAppended() {
	globalManager.historyAppended.Inc()
}

// RecordHistoryPruned adds pruned history records.
func RecordHistoryPruned(count int) {
	if count > 0 {
		globalManager.historyPruned.Add(float64(count))
	}
}

// RecordRepositoryError counts a failed repository call.
func RecordRepositoryError(repository, op string) {
	globalManager.repositoryErrors.WithLabelValues(repository, op).Inc()
}

// UpdateQueueSize sets the current job queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the job queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected job submission.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordJobDuration records how long a job ran.
func RecordJobDuration(job string, latencyMs float64) {
	globalManager.jobDuration.WithLabelValues(job).Observe(latencyMs)
}

// RecordJobError counts a failed job.
func RecordJobError(job string) {
	globalManager.jobErrors.WithLabelValues(job).Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
