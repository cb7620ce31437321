// Package bus implements the in-process workflow event bus. Publication is
// synchronous on the publisher's goroutine; handlers run in registration
// order and are isolated from one another.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type identifies the kind of workflow event.
type Type string

const (
	TypePlanCreated   Type = "plan.created"
	TypePlanCompleted Type = "plan.completed"
	TypePlanArchived  Type = "plan.archived"
	TypePlanDeleted   Type = "plan.deleted"
	TypeTaskAdded     Type = "task.added"
	TypeTaskRequeued  Type = "task.requeued"
	TypeTaskStarted   Type = "task.started"
	TypeTaskCompleted Type = "task.completed"
	TypeTaskBlocked   Type = "task.blocked"
	TypeTaskCancelled Type = "task.cancelled"
)

// Event describes a single state transition. From and To carry the statuses
// of the entity the transition applies to; Details holds operation-specific
// metadata such as block reasons or completion notes.
type Event struct {
	Type      Type           `json:"type"`
	PlanID    string         `json:"plan_id"`
	TaskID    string         `json:"task_id,omitempty"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// Handler consumes one event. Handlers must treat events as read-only
// notifications; a returned error is logged and never reaches the publisher.
type Handler func(ctx context.Context, ev Event) error

// Bus is a synchronous publish/subscribe dispatcher keyed by event type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for one event type. Handlers are invoked in
// registration order.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish delivers ev to every handler registered for ev.Type, in order, on
// the calling goroutine. A handler error or panic is logged and never
// prevents delivery to subsequent handlers nor propagates to the publisher.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	hs := b.handlers[ev.Type]
	b.mu.RUnlock()

	for _, h := range hs {
		b.deliver(ctx, h, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "type", ev.Type, "panic", r)
		}
	}()
	if err := h(ctx, ev); err != nil {
		slog.Error("event handler failed", "type", ev.Type, "plan_id", ev.PlanID, "error", err)
	}
}
