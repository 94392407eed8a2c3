package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(stageDuration, stageOutcomes, tasksByStatus, tasksSubmitted)
}

var (
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	stageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_outcomes_total",
			Help:      "Stage outcomes: ok, degraded or fatal.",
		},
		[]string{"stage", "outcome"},
	)

	tasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Tasks currently in each status.",
		},
		[]string{"status"},
	)

	tasksSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Tasks accepted for processing.",
		},
	)
)

// ObserveStage records one stage run. outcome is "ok", "degraded" or "fatal".
func ObserveStage(stage, outcome string, d time.Duration) {
	stageDuration.WithLabelValues(norm(stage)).Observe(d.Seconds())
	stageOutcomes.WithLabelValues(norm(stage), norm(outcome)).Inc()
}

// TaskSubmitted counts a new task.
func TaskSubmitted() {
	tasksSubmitted.Inc()
	tasksByStatus.WithLabelValues("queued").Inc()
}

// TaskTransition moves one task between status gauges.
func TaskTransition(from, to string) {
	tasksByStatus.WithLabelValues(norm(from)).Dec()
	tasksByStatus.WithLabelValues(norm(to)).Inc()
}
