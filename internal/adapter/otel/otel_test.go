package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/planwright/planwright/internal/domain/task"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if m.TasksCompleted == nil || m.TasksFailed == nil || m.TasksSkipped == nil || m.TaskDuration == nil {
		t.Fatal("expected all instruments to be created")
	}
	// Without an installed provider the instruments are no-ops; recording
	// must still be safe.
	m.TasksCompleted.Add(context.Background(), 1)
	m.TaskDuration.Record(context.Background(), 0.5)
}

func TestTraceWorkPassesThrough(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]any{"artifact": "a.tar.gz"}
	work := TraceWork(m, func(_ context.Context, tk task.Task) (map[string]any, error) {
		if tk.Title != "build" {
			t.Fatalf("unexpected task %q", tk.Title)
		}
		return want, nil
	})

	got, err := work(context.Background(), task.Task{ID: "t1", Title: "build"})
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if got["artifact"] != "a.tar.gz" {
		t.Fatalf("outputs not passed through: %v", got)
	}
}

func TestTraceWorkPropagatesError(t *testing.T) {
	boom := errors.New("command exited 1")
	work := TraceWork(nil, func(context.Context, task.Task) (map[string]any, error) {
		return nil, boom
	})

	if _, err := work(context.Background(), task.Task{ID: "t1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestHTTPMiddlewareServes(t *testing.T) {
	var hit bool
	h := HTTPMiddleware("planwright")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !hit {
		t.Fatal("inner handler not invoked")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
