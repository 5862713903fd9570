// Package metrics provides Prometheus metrics for the ULTRALIVE race engine.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace = "ultralive"
	defaultSubsystem = "race"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion Metrics - one scheduled tick per poll interval
	ticksRun     prometheus.Counter
	ticksSkipped prometheus.Counter
	ticksFailed  prometheus.Counter
	tickDuration prometheus.Histogram

	// Feed Metrics - provider fetch and parse quality
	feedFetchDuration prometheus.Histogram
	feedRowsParsed    prometheus.Counter
	feedRowsDropped   prometheus.Counter
	feedEmptyBatches  prometheus.Counter

	// Lap Reconciliation Metrics
	lapsDetected   prometheus.Counter
	lapsInserted   prometheus.Counter
	lapsRejected   prometheus.Counter
	lapsDuplicate  prometheus.Counter
	boardUpserts   prometheus.Counter
	storeWriteTime prometheus.Histogram

	// Live State Metrics
	fieldSize      prometheus.Gauge
	runnersOnBreak prometheus.Gauge
	lastTickUnix   prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Init creates and registers the global metrics manager.
func Init(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.ticksRun = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ticks_run_total", Help: "Ingestion ticks started.",
	})
	m.ticksSkipped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ticks_skipped_total", Help: "Ticks skipped by the run-guard because the previous tick was still in flight.",
	})
	m.ticksFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ticks_failed_total", Help: "Ticks aborted with no writes.",
	})
	m.tickDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "tick_duration_seconds", Help: "Full fetch/compute/write tick duration.",
		Buckets: m.histogramBuckets,
	})

	m.feedFetchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_fetch_duration_seconds", Help: "Provider fetch duration.",
		Buckets: m.histogramBuckets,
	})
	m.feedRowsParsed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_rows_parsed_total", Help: "Snapshot rows successfully parsed.",
	})
	m.feedRowsDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_rows_dropped_total", Help: "Malformed snapshot rows skipped.",
	})
	m.feedEmptyBatches = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_empty_batches_total", Help: "Structurally OK documents that yielded zero rows.",
	})

	m.lapsDetected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "laps_detected_total", Help: "New-lap candidates observed in snapshots.",
	})
	m.lapsInserted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "laps_inserted_total", Help: "Lap rows persisted.",
	})
	m.lapsRejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "laps_rejected_total", Help: "Lap candidates dropped by validity checks.",
	})
	m.lapsDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "laps_duplicate_total", Help: "Lap candidates filtered as already persisted.",
	})
	m.boardUpserts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "board_upserts_total", Help: "Leaderboard rows upserted.",
	})
	m.storeWriteTime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_write_duration_seconds", Help: "Batch write duration per tick.",
		Buckets: m.histogramBuckets,
	})

	m.fieldSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "field_size", Help: "Runners on the current leaderboard.",
	})
	m.runnersOnBreak = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "runners_on_break", Help: "Runners currently classified as on break.",
	})
	m.lastTickUnix = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "last_tick_unix", Help: "Unix time of the last successful tick.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total", Help: "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "request_duration_ms", Help: "HTTP request duration in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"endpoint", "method", "status"})

	m.errorRateByType = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors",
		Name: "by_type_total", Help: "Errors by type and severity.",
	}, []string{"type", "severity"})
	m.errorRateByEndpoint = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors",
		Name: "by_endpoint_total", Help: "Errors by endpoint and method.",
	}, []string{"endpoint", "method", "type"})
	m.errorLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "errors",
		Name: "latency_ms", Help: "Latency of requests that ended in error.",
		Buckets: []float64{1, 10, 100, 1000},
	}, []string{"component", "type"})

	m.systemMemoryUsage = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_bytes", Help: "Heap bytes in use.",
	})
	m.systemGoroutineCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines", Help: "Current goroutine count.",
	})

	globalManager = m
	return m
}

// get returns the global manager, or nil when metrics are uninitialized.
// All helpers tolerate a nil manager so unit tests need no registry.
func get() *Manager { return globalManager }

// RecordTickRun counts a started ingestion tick.
func RecordTickRun() {
	if m := get(); m != nil {
		m.ticksRun.Inc()
	}
}

// RecordTickSkipped counts a tick skipped by the run-guard.
func RecordTickSkipped() {
	if m := get(); m != nil {
		m.ticksSkipped.Inc()
	}
}

// RecordTickFailed counts an aborted tick.
func RecordTickFailed() {
	if m := get(); m != nil {
		m.ticksFailed.Inc()
	}
}

// ObserveTickDuration records a completed tick's duration.
func ObserveTickDuration(d time.Duration) {
	if m := get(); m != nil {
		m.tickDuration.Observe(d.Seconds())
		m.lastTickUnix.SetToCurrentTime()
	}
}

// ObserveFeedFetch records one provider fetch duration.
func ObserveFeedFetch(d time.Duration) {
	if m := get(); m != nil {
		m.feedFetchDuration.Observe(d.Seconds())
	}
}

// RecordRowsParsed counts successfully parsed snapshot rows.
func RecordRowsParsed(n int) {
	if m := get(); m != nil {
		m.feedRowsParsed.Add(float64(n))
	}
}

// RecordRowsDropped counts skipped malformed rows.
func RecordRowsDropped(n int) {
	if m := get(); m != nil {
		m.feedRowsDropped.Add(float64(n))
	}
}

// RecordEmptyBatch counts a zero-row parse result.
func RecordEmptyBatch() {
	if m := get(); m != nil {
		m.feedEmptyBatches.Inc()
	}
}

// RecordLapsDetected counts new-lap candidates.
func RecordLapsDetected(n int) {
	if m := get(); m != nil {
		m.lapsDetected.Add(float64(n))
	}
}

// RecordLapsInserted counts persisted lap rows.
func RecordLapsInserted(n int) {
	if m := get(); m != nil {
		m.lapsInserted.Add(float64(n))
	}
}

// RecordLapsRejected counts candidates dropped by validity checks.
func RecordLapsRejected(n int) {
	if m := get(); m != nil {
		m.lapsRejected.Add(float64(n))
	}
}

// RecordLapsDuplicate counts candidates filtered as already persisted.
func RecordLapsDuplicate(n int) {
	if m := get(); m != nil {
		m.lapsDuplicate.Add(float64(n))
	}
}

// RecordBoardUpserts counts leaderboard rows written.
func RecordBoardUpserts(n int) {
	if m := get(); m != nil {
		m.boardUpserts.Add(float64(n))
	}
}

// ObserveStoreWrite records the batch write duration of one tick.
func ObserveStoreWrite(d time.Duration) {
	if m := get(); m != nil {
		m.storeWriteTime.Observe(d.Seconds())
	}
}

// UpdateFieldSize sets the current leaderboard size.
func UpdateFieldSize(n int) {
	if m := get(); m != nil {
		m.fieldSize.Set(float64(n))
	}
}

// UpdateRunnersOnBreak sets the current on-break count.
func UpdateRunnersOnBreak(n int) {
	if m := get(); m != nil {
		m.runnersOnBreak.Set(float64(n))
	}
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	if m := get(); m != nil {
		m.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

// RecordHTTPRequestDuration records one HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	if m := get(); m != nil {
		m.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
	}
}

// RecordErrorByType counts an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	if m := get(); m != nil {
		m.errorRateByType.WithLabelValues(errorType, severity).Inc()
	}
}

// RecordErrorByEndpoint counts an error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if m := get(); m != nil {
		m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// RecordErrorLatency records latency of a failed operation.
func RecordErrorLatency(component, errorType string, durationMs float64) {
	if m := get(); m != nil {
		m.errorLatency.WithLabelValues(component, errorType).Observe(durationMs)
	}
}

// GetRegistry returns the gatherer backing the manager, for serving the
// /metrics endpoint. Falls back to the default gatherer when the manager
// registers into the default registry.
func GetRegistry() prometheus.Gatherer {
	if m := get(); m != nil {
		if g, ok := m.registry.(prometheus.Gatherer); ok {
			return g
		}
	}
	return prometheus.DefaultGatherer
}

// UpdateSystemMetrics refreshes memory and goroutine gauges.
func UpdateSystemMetrics() {
	m := get()
	if m == nil {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}
