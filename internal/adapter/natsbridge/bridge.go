// Package natsbridge forwards workflow events to NATS JetStream subjects so
// external tooling (auto-commit, doc generation, escalation) can observe the
// engine without living in its process. The bridge is strictly one-way: it
// publishes, it never writes workflow state.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/planwright/planwright/internal/bus"
	"github.com/planwright/planwright/internal/resilience"
)

const streamName = "PLANWRIGHT"

// subjectPrefix is prepended to the event type, e.g. workflow.task.completed.
const subjectPrefix = "workflow."

// Bridge publishes workflow events to NATS. Publishes run through a circuit
// breaker: the bus invokes the bridge synchronously on the mutation path, so
// an unreachable broker must fail fast instead of stalling every caller.
type Bridge struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	breaker *resilience.Breaker
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// exists.
func Connect(ctx context.Context, url string) (*Bridge, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats bridge connected", "url", url, "stream", streamName)
	return &Bridge{
		nc:      nc,
		js:      js,
		breaker: resilience.NewBreaker(5, 30*time.Second),
	}, nil
}

// Subject maps an event type to its NATS subject.
func Subject(t bus.Type) string {
	return subjectPrefix + string(t)
}

// Listener returns a bus handler that forwards each event to NATS. Delivery
// across a process restart is not exactly-once: an event published after a
// crash-recovered mutation may be absent, which is the engine's documented
// persist-then-publish loss window.
func (b *Bridge) Listener() bus.Handler {
	return func(ctx context.Context, ev bus.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		err = b.breaker.Execute(func() error {
			_, perr := b.js.Publish(ctx, Subject(ev.Type), data)
			return perr
		})
		if err != nil {
			return fmt.Errorf("nats publish %s: %w", Subject(ev.Type), err)
		}
		return nil
	}
}

// SubscribeAll registers the listener for every workflow event type.
func (b *Bridge) SubscribeAll(eb *bus.Bus) {
	h := b.Listener()
	for _, t := range []bus.Type{
		bus.TypePlanCreated, bus.TypePlanCompleted, bus.TypePlanArchived, bus.TypePlanDeleted,
		bus.TypeTaskAdded, bus.TypeTaskRequeued, bus.TypeTaskStarted,
		bus.TypeTaskCompleted, bus.TypeTaskBlocked, bus.TypeTaskCancelled,
	} {
		eb.Subscribe(t, h)
	}
}

// Drain gracefully flushes pending publishes before closing.
func (b *Bridge) Drain() error {
	return b.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (b *Bridge) Close() {
	b.nc.Close()
}
