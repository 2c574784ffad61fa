// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// Operation outcome is "ok" or the error code.
	EngineOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dar_engine_operations_total",
			Help: "Application operations applied by the coordinator",
		},
		[]string{"operation", "outcome"},
	)

	VersionConflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dar_version_conflict_retries_total",
			Help: "Reload-and-reapply attempts caused by concurrent saves",
		},
		[]string{"operation"},
	)

	// Kind is a notification category or a workflow request kind.
	DispatchedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dar_dispatched_events_total",
			Help: "Post-commit notifications and process-engine requests",
		},
		[]string{"kind", "status"},
	)

	SearchIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dar_search_indexed_total",
			Help: "Application documents written to the search index",
		},
		[]string{"status"},
	)
)

// RecordOperation counts one coordinator operation.
func RecordOperation(operation, outcome string) {
	EngineOperations.WithLabelValues(operation, outcome).Inc()
}

func RecordDispatch(kind, status string) {
	DispatchedEvents.WithLabelValues(kind, status).Inc()
}
