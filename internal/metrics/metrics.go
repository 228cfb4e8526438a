// Package metrics holds the Prometheus collectors exported by histcore.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksTotal counts engine tasks by operation and result.
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "histcore_engine_tasks_total",
		Help: "Total engine tasks by operation and result",
	}, []string{"op", "result"})

	// TaskDuration tracks engine task latency.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "histcore_engine_task_duration_seconds",
		Help:    "Engine task duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"op"})

	// VisitsRecorded counts stored visits by source.
	VisitsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "histcore_visits_recorded_total",
		Help: "Total visits stored by source",
	}, []string{"source"})

	// VisitsExpired counts deleted visits by reason.
	VisitsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "histcore_visits_expired_total",
		Help: "Total visits deleted by reason",
	}, []string{"reason"})

	// PolicyRejections counts URLs skipped by the recording policy.
	PolicyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "histcore_policy_rejections_total",
		Help: "URLs not recorded because the policy refused them",
	})

	// CacheRows is the current autocomplete cache size.
	CacheRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "histcore_autocomplete_cache_rows",
		Help: "Rows held by the autocomplete cache",
	})

	// MostVisitedChanges counts ranking changes seen by the serve loop.
	MostVisitedChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "histcore_most_visited_changes_total",
		Help: "Most-visited ranking changes by kind",
	}, []string{"kind"})

	// QueueDepth is the number of tasks waiting on the engine sequence.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "histcore_engine_queue_depth",
		Help: "Tasks waiting on the engine sequence",
	})
)

// ObserveTask records one finished engine task.
func ObserveTask(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	TasksTotal.WithLabelValues(op, result).Inc()
	TaskDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
