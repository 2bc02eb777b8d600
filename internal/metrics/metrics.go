package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ScanRunsRunning is 1 while a scan run executes, else 0.
	ScanRunsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_runs_running",
			Help: "Number of scan runs currently running",
		},
	)

	// ScanRunsTotal counts finished scan runs by terminal status.
	ScanRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_runs_total",
			Help: "Total number of scan runs finished by status",
		},
		[]string{"status"},
	)

	// ScanRunDuration observes wall time from start to terminal state.
	ScanRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_run_duration_seconds",
			Help:    "Scan run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// ScheduleTriggersTotal counts matched schedule triggers by outcome
	// (started, duplicate, skipped, error).
	ScheduleTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_triggers_total",
			Help: "Total number of schedule triggers by outcome",
		},
		[]string{"outcome"},
	)
)

var (
	idPathSegment = regexp.MustCompile(`/([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})(/|$)`)
	initOnce      sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, ScanRunsRunning, ScanRunsTotal, ScanRunDuration, ScheduleTriggersTotal)
	})
}

// NormalizePath reduces cardinality by replacing numeric and UUID path segments with {id}.
// E.g. /v1/schedules/0b7c...-9f1e -> /v1/schedules/{id}, /v1/runs/45/logs -> /v1/runs/{id}/logs.
func NormalizePath(path string) string {
	return idPathSegment.ReplaceAllString(path, "/{id}$2")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RunStarted marks a scan run as executing.
func RunStarted() {
	ScanRunsRunning.Inc()
}

// RunFinished records a run reaching a terminal status after durationSeconds.
func RunFinished(status string, durationSeconds float64) {
	ScanRunsRunning.Dec()
	ScanRunsTotal.WithLabelValues(status).Inc()
	ScanRunDuration.Observe(durationSeconds)
}

// IncTrigger counts one schedule trigger outcome.
func IncTrigger(outcome string) {
	ScheduleTriggersTotal.WithLabelValues(outcome).Inc()
}
