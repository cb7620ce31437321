package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/planwright/planwright/internal/domain/task"
)

const tracerName = "planwright"

// WorkFunc mirrors the executor's work callback signature.
type WorkFunc = func(ctx context.Context, t task.Task) (map[string]any, error)

// TraceWork wraps a work callback so every task execution runs inside its
// own span. When m is non-nil the execution outcome and duration are also
// recorded on its instruments.
func TraceWork(m *Metrics, next WorkFunc) WorkFunc {
	return func(ctx context.Context, t task.Task) (map[string]any, error) {
		ctx, span := otel.Tracer(tracerName).Start(ctx, "task.execute",
			trace.WithAttributes(
				attribute.String("task.id", t.ID),
				attribute.String("task.title", t.Title),
			),
		)
		defer span.End()

		start := time.Now()
		outputs, err := next(ctx, t)

		if m != nil {
			m.TaskDuration.Record(ctx, time.Since(start).Seconds())
			if err != nil {
				m.TasksFailed.Add(ctx, 1)
			} else {
				m.TasksCompleted.Add(ctx, 1)
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "work failed")
		}
		return outputs, err
	}
}
