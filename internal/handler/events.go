package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/sse"
)

// EventsHandler serves the receiver-facing push endpoint. No code is
// required to subscribe; receivers are the trusted display side.
type EventsHandler struct {
	broker *sse.Broker
}

func NewEventsHandler(broker *sse.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe()
	defer h.broker.Unsubscribe(client)

	log.Info().Str("remote", r.RemoteAddr).Msg("receiver connected")

	flusher.Flush()

	ctx := r.Context()

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("remote", r.RemoteAddr).Msg("receiver disconnected")
			return

		case <-client.Done:
			log.Info().Str("remote", r.RemoteAddr).Msg("receiver connection closed by broker")
			return

		case event := <-client.Events:
			if err := sendEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("remote", r.RemoteAddr).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

// sendEvent writes the whole envelope on the data line. Receivers decode
// the type discriminator from the JSON itself rather than the SSE event
// field, so one parser covers both pushed and fetched payloads.
func sendEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
