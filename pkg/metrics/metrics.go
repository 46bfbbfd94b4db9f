package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pixelforge_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	TasksSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pixelforge_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		},
	)

	TasksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelforge_tasks_rejected_total",
			Help: "Total number of tasks rejected at submit time by reason",
		},
		[]string{"reason"},
	)

	TaskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixelforge_task_duration_seconds",
			Help:    "Time from queued to terminal status in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Image metrics
	ImagesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pixelforge_images_total",
			Help: "Total number of images by status",
		},
		[]string{"status"},
	)

	// Queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixelforge_queue_depth",
			Help: "Current number of tasks waiting in the worker queue",
		},
	)

	WorkersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixelforge_workers_busy",
			Help: "Number of workers currently processing a task",
		},
	)

	// Provider metrics
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelforge_provider_requests_total",
			Help: "Total number of upstream provider requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixelforge_provider_request_duration_seconds",
			Help:    "Upstream provider request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelforge_provider_retries_total",
			Help: "Total number of retried upstream provider requests by provider",
		},
		[]string{"provider"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelforge_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixelforge_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	StreamSubscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixelforge_stream_subscribers_active",
			Help: "Number of active progress stream subscribers across all tasks",
		},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixelforge_reconciliation_duration_seconds",
			Help:    "Time taken for the startup reconciliation pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pixelforge_reconciliation_cycles_total",
			Help: "Total number of reconciliation passes completed",
		},
	)

	ReconciledTasksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pixelforge_reconciled_tasks_total",
			Help: "Total number of tasks force-finalized by the reconciler",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TasksTotal,
		TasksSubmittedTotal,
		TasksRejectedTotal,
		TaskDuration,
		ImagesTotal,
		QueueDepth,
		WorkersBusy,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderRetriesTotal,
		APIRequestsTotal,
		APIRequestDuration,
		StreamSubscribersActive,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		ReconciledTasksTotal,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
