package runner

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlcheck_runner_tasks_total",
			Help: "Total number of tasks started on their own goroutine.",
		},
	)

	timeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlcheck_runner_timeouts_total",
			Help: "Total number of blocking runs whose deadline passed before the task finished.",
		},
	)

	panicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlcheck_runner_panics_total",
			Help: "Total number of tasks that panicked.",
		},
	)

	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "urlcheck_runner_task_duration_seconds",
			Help:    "Task execution time from start to completion, including abandoned tasks, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(tasksStarted)
	prometheus.MustRegister(timeoutsTotal)
	prometheus.MustRegister(panicsTotal)
	prometheus.MustRegister(taskDuration)
}
