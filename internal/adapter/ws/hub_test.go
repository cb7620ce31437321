package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/planwright/planwright/internal/bus"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "task.started",
		Payload: []byte(`{"task_id":"t1"}`),
	})
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}

	// Removing a connection that was never added should not panic.
	hub.remove(c)
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestListenerRelaysEvent(t *testing.T) {
	hub := NewHub()
	h := hub.Listener()

	ev := bus.Event{
		Type:      bus.TypeTaskCompleted,
		PlanID:    "p1",
		TaskID:    "t1",
		From:      "in_progress",
		To:        "completed",
		Timestamp: time.Now().UTC(),
	}
	// With no connections this is a marshal-and-drop; it must not error.
	if err := h(context.Background(), ev); err != nil {
		t.Fatalf("listener returned error: %v", err)
	}
}

func TestListenerEnvelopeShape(t *testing.T) {
	ev := bus.Event{Type: bus.TypePlanCreated, PlanID: "p1"}
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	msg := Message{Type: string(ev.Type), Payload: payload}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Type    string    `json:"type"`
		Payload bus.Event `json:"payload"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != "plan.created" || decoded.Payload.PlanID != "p1" {
		t.Fatalf("unexpected envelope: %+v", decoded)
	}
}
