package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/planwright/planwright/internal/bus"
)

// Listener returns a bus handler that relays workflow events to all
// connected clients. Clients receive the event verbatim inside the message
// envelope; they are read-only observers.
func (h *Hub) Listener() bus.Handler {
	return func(ctx context.Context, ev bus.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("marshal ws event payload", "type", ev.Type, "error", err)
			return nil
		}
		h.Broadcast(ctx, Message{
			Type:    string(ev.Type),
			Payload: json.RawMessage(data),
		})
		return nil
	}
}
