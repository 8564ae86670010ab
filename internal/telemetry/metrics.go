// Package telemetry provides Prometheus instrumentation for the broker.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics holds the instruments for task processing metrics.
type SyncMetrics struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

// NewSyncMetrics creates a SyncMetrics instance registered on the given
// registerer. If reg is nil, it returns nil (no-op metrics).
func NewSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &SyncMetrics{
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solid_shop_sync_tasks_total",
			Help: "Number of processed synchronization tasks.",
		}, []string{"type", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "solid_shop_sync_task_duration_seconds",
			Help:    "Duration of task processing in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"type"}),
	}

	if err := reg.Register(m.tasksTotal); err != nil {
		return nil, err
	}
	if err := reg.Register(m.taskDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordTask records the outcome and duration of one processed task.
func (m *SyncMetrics) RecordTask(taskType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(taskType, outcome).Inc()
	m.taskDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}
