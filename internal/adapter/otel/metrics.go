package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "planwright"

// Metrics holds the executor's metric instruments.
type Metrics struct {
	TasksCompleted metric.Int64Counter
	TasksFailed    metric.Int64Counter
	TasksSkipped   metric.Int64Counter
	TaskDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksCompleted, err = meter.Int64Counter("planwright.tasks.completed",
		metric.WithDescription("Number of tasks the executor completed"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("planwright.tasks.failed",
		metric.WithDescription("Number of task work failures"))
	if err != nil {
		return nil, err
	}

	m.TasksSkipped, err = meter.Int64Counter("planwright.tasks.skipped",
		metric.WithDescription("Number of tasks skipped over unmet dependencies"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("planwright.task.duration_seconds",
		metric.WithDescription("Task execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
