// internal/monitoring/metrics.go
package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsManager manages Prometheus metrics for the tab session layer.
// All record methods are safe to call on a nil manager; monitoring then
// becomes a no-op.
type MetricsManager struct {
	// Tab lifecycle metrics
	tabsOpened  prometheus.Counter
	tabsClosed  prometheus.Counter
	tabSwitches prometheus.Counter
	tabsActive  prometheus.Gauge

	// Navigation metrics
	navigationsTotal   *prometheus.CounterVec
	navigationDuration prometheus.Histogram

	// Interaction metrics
	clicksTotal   *prometheus.CounterVec
	jsEvaluations *prometheus.CounterVec
	scrollRounds  prometheus.Histogram

	// Task metrics
	taskRuns       *prometheus.CounterVec
	taskDuration   prometheus.Histogram
	tasksScheduled prometheus.Gauge

	// Session metrics
	sessionsActive prometheus.Gauge
	uaRotations    prometheus.Counter

	// System metrics
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge

	// Configuration
	namespace string
	subsystem string
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace     string `json:"namespace"`
	Subsystem     string `json:"subsystem"`
	MetricsPath   string `json:"metrics_path"`
	ListenAddress string `json:"listen_address"`

	// Registerer receives the metrics; nil uses the default registry
	Registerer prometheus.Registerer `json:"-"`
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "browsertabs"
	}
	if config.Subsystem == "" {
		config.Subsystem = "tabs"
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}

	mm := &MetricsManager{
		namespace: config.Namespace,
		subsystem: config.Subsystem,
	}

	mm.initializeMetrics(config.Registerer)

	return mm
}

// initializeMetrics initializes all Prometheus metrics
func (mm *MetricsManager) initializeMetrics(registerer prometheus.Registerer) {
	factory := promauto.With(registerer)

	// Tab lifecycle metrics
	mm.tabsOpened = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "opened_total",
			Help:      "Total number of tabs opened",
		},
	)

	mm.tabsClosed = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "closed_total",
			Help:      "Total number of tabs closed",
		},
	)

	mm.tabSwitches = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "switches_total",
			Help:      "Total number of tab focus switches",
		},
	)

	mm.tabsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "active",
			Help:      "Number of currently open managed tabs",
		},
	)

	// Navigation metrics
	mm.navigationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "navigations_total",
			Help:      "Total number of page navigations",
		},
		[]string{"status"},
	)

	mm.navigationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "navigation_duration_seconds",
			Help:      "Page navigation duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
	)

	// Interaction metrics
	mm.clicksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "clicks_total",
			Help:      "Total number of element clicks by strategy",
		},
		[]string{"strategy", "status"},
	)

	mm.jsEvaluations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "js_evaluations_total",
			Help:      "Total number of JavaScript evaluations",
		},
		[]string{"status"},
	)

	mm.scrollRounds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "scroll_rounds",
			Help:      "Rounds needed until infinite scroll settled",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)

	// Task metrics
	mm.taskRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "task_runs_total",
			Help:      "Total number of scheduled task runs",
		},
		[]string{"status"},
	)

	mm.taskDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "task_duration_seconds",
			Help:      "Scheduled task run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 120.0},
		},
	)

	mm.tasksScheduled = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "tasks_scheduled",
			Help:      "Number of currently scheduled tasks",
		},
	)

	// Session metrics
	mm.sessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "sessions_active",
			Help:      "Number of currently running browser sessions",
		},
	)

	mm.uaRotations = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "ua_rotations_total",
			Help:      "Total number of user agent rotations",
		},
	)

	// System metrics
	mm.memoryUsage = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "memory_usage_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	mm.goroutineCount = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "goroutines_count",
			Help:      "Current number of goroutines",
		},
	)
}

// Tab lifecycle metrics
func (mm *MetricsManager) RecordTabOpened() {
	if mm == nil {
		return
	}
	mm.tabsOpened.Inc()
	mm.tabsActive.Inc()
}

func (mm *MetricsManager) RecordTabClosed() {
	if mm == nil {
		return
	}
	mm.tabsClosed.Inc()
	mm.tabsActive.Dec()
}

func (mm *MetricsManager) RecordTabSwitch() {
	if mm == nil {
		return
	}
	mm.tabSwitches.Inc()
}

// Navigation metrics
func (mm *MetricsManager) RecordNavigation(status string, duration time.Duration) {
	if mm == nil {
		return
	}
	mm.navigationsTotal.WithLabelValues(status).Inc()
	mm.navigationDuration.Observe(duration.Seconds())
}

// Interaction metrics
func (mm *MetricsManager) RecordClick(strategy, status string) {
	if mm == nil {
		return
	}
	mm.clicksTotal.WithLabelValues(strategy, status).Inc()
}

func (mm *MetricsManager) RecordJSEvaluation(status string) {
	if mm == nil {
		return
	}
	mm.jsEvaluations.WithLabelValues(status).Inc()
}

func (mm *MetricsManager) RecordScrollRounds(rounds int) {
	if mm == nil {
		return
	}
	mm.scrollRounds.Observe(float64(rounds))
}

// Task metrics
func (mm *MetricsManager) RecordTaskRun(status string, duration time.Duration) {
	if mm == nil {
		return
	}
	mm.taskRuns.WithLabelValues(status).Inc()
	mm.taskDuration.Observe(duration.Seconds())
}

func (mm *MetricsManager) SetTasksScheduled(count int) {
	if mm == nil {
		return
	}
	mm.tasksScheduled.Set(float64(count))
}

// Session metrics
func (mm *MetricsManager) RecordSessionStart() {
	if mm == nil {
		return
	}
	mm.sessionsActive.Inc()
}

func (mm *MetricsManager) RecordSessionEnd() {
	if mm == nil {
		return
	}
	mm.sessionsActive.Dec()
}

func (mm *MetricsManager) RecordUserAgentRotation() {
	if mm == nil {
		return
	}
	mm.uaRotations.Inc()
}

// System metrics
func (mm *MetricsManager) UpdateMemoryUsage(bytes uint64) {
	if mm == nil {
		return
	}
	mm.memoryUsage.Set(float64(bytes))
}

func (mm *MetricsManager) UpdateGoroutineCount(count int) {
	if mm == nil {
		return
	}
	mm.goroutineCount.Set(float64(count))
}

// CollectSystemMetrics reads current runtime statistics into the system gauges
func (mm *MetricsManager) CollectSystemMetrics() {
	if mm == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.UpdateMemoryUsage(m.Alloc)
	mm.UpdateGoroutineCount(runtime.NumGoroutine())
}

// MetricsHandler returns an HTTP handler for the metrics endpoint
func (mm *MetricsManager) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts the metrics HTTP server
func (mm *MetricsManager) StartMetricsServer(ctx context.Context, address, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, mm.MetricsHandler())

	server := &http.Server{
		Addr:    address,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	return server.ListenAndServe()
}

// GetMetrics returns a snapshot of basic runtime values as a map.
// For full metric values, use the Prometheus /metrics endpoint directly.
func (mm *MetricsManager) GetMetrics() map[string]interface{} {
	metrics := make(map[string]interface{})

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics["system"] = map[string]interface{}{
		"memory_alloc_bytes": m.Alloc,
		"memory_sys_bytes":   m.Sys,
		"goroutines_count":   runtime.NumGoroutine(),
		"gc_cycles":          m.NumGC,
	}

	metrics["metric_families"] = map[string]interface{}{
		"opened_total":       "Counter - Tabs opened",
		"active":             "Gauge - Currently open managed tabs",
		"navigations_total":  "Counter - Page navigations by status",
		"task_runs_total":    "Counter - Scheduled task runs by status",
		"sessions_active":    "Gauge - Running browser sessions",
		"memory_usage_bytes": "Gauge - Current memory usage",
	}

	return metrics
}

// Package-level default manager, created lazily so importing this package
// does not register metrics by itself.
var (
	defaultManager *MetricsManager
	defaultOnce    sync.Once
)

// Default returns the process-wide metrics manager, creating it in the
// default Prometheus registry on first use.
func Default() *MetricsManager {
	defaultOnce.Do(func() {
		defaultManager = NewMetricsManager(MetricsConfig{})
	})
	return defaultManager
}
