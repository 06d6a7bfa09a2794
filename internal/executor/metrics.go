package executor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cynetics_executions_total",
			Help: "Total number of task executions by environment and terminal status.",
		},
		[]string{"environment", "status"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cynetics_execution_duration_seconds",
			Help:    "Task execution duration from launch to terminal state, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"environment"},
	)

	activeExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cynetics_active_executions",
			Help: "Number of currently executing tasks.",
		},
	)

	teardownDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cynetics_teardown_duration_seconds",
			Help:    "Duration of execution context teardown, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"environment"},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(activeExecutions)
	prometheus.MustRegister(teardownDuration)

	// Pre-initialize counter label combinations so they appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	for _, env := range []string{model.EnvLocal, model.EnvSandbox, model.EnvContainer} {
		for _, status := range []string{model.StatusCompleted, model.StatusFailed, model.StatusTimedOut} {
			executionsTotal.WithLabelValues(env, status)
		}
	}
}
