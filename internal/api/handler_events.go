package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// sseKeepAlive is how often an idle stream receives a comment line.
const sseKeepAlive = 15 * time.Second

// EventSubscriber delivers retry events to live subscribers.
type EventSubscriber interface {
	SubscribeAll() (<-chan *core.RetryEvent, func())
	SubscribeJob(jobID string) (<-chan *core.RetryEvent, func())
	SubscribeQueue(queue string) (<-chan *core.RetryEvent, func())
}

// EventsHandler streams retry events as Server-Sent Events.
type EventsHandler struct {
	subscriber EventSubscriber
	logger     *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(subscriber EventSubscriber, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{subscriber: subscriber, logger: logger}
}

// Stream handles GET /ojs/v1/retry/events. The optional job_id or queue
// query parameter narrows the stream.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, core.NewInternalError("Streaming is not supported by this connection."))
		return
	}

	var (
		events      <-chan *core.RetryEvent
		unsubscribe func()
	)
	switch q := r.URL.Query(); {
	case q.Get("job_id") != "":
		events, unsubscribe = h.subscriber.SubscribeJob(q.Get("job_id"))
	case q.Get("queue") != "":
		events, unsubscribe = h.subscriber.SubscribeQueue(q.Get("queue"))
	default:
		events, unsubscribe = h.subscriber.SubscribeAll()
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("failed to encode retry event", "event_id", ev.ID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
