package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"chronofauna/internal/eventbus"
)

// EventsHandler implements GET /events/stream (§6): `data: <json>\n\n`
// frames, `: keepalive\n\n` comment heartbeats.
type EventsHandler struct {
	bus *eventbus.Bus
}

func NewEventsHandler(bus *eventbus.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(evt eventbus.Event) error {
		data, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	heartbeat := func() error {
		if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_ = h.bus.Stream(r.Context(), emit, heartbeat)
}
