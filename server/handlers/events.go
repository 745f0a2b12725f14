package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/nomis52/instrumentsim/events"
)

// DefaultHeartbeat is how often an idle stream sends a comment line so proxies
// and clients can tell the connection is alive.
const DefaultHeartbeat = 15 * time.Second

// EventStreamHandler streams queued events as Server-Sent Events. Each frame's
// event field is the event name and its data field is the JSON envelope.
//
// The stream has no replay. Events are removed from the queue as they are sent,
// so a second concurrent subscriber only sees the events the first one did not
// take.
type EventStreamHandler struct {
	logger    *slog.Logger
	source    EventSource
	heartbeat time.Duration
}

// NewEventStreamHandler creates a new EventStreamHandler. A zero heartbeat
// disables keep-alive comments.
func NewEventStreamHandler(logger *slog.Logger, source EventSource, heartbeat time.Duration) *EventStreamHandler {
	return &EventStreamHandler{
		logger:    logger,
		source:    source,
		heartbeat: heartbeat,
	}
}

// ServeHTTP implements http.Handler.
func (h *EventStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives any server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("failed to clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("event stream cannot be flushed", "error", err)
		return
	}

	ctx := r.Context()
	h.logger.Info("event subscriber connected", "remote", r.RemoteAddr)
	defer h.logger.Info("event subscriber disconnected", "remote", r.RemoteAddr)

	for {
		env, err := h.next(ctx)
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			if _, err := io.WriteString(w, ":\n\n"); err != nil {
				return
			}
		case err != nil:
			// Client went away or the queue was closed for shutdown.
			return
		default:
			if err := sse.Encode(w, sse.Event{Event: string(env.EventName), Data: env}); err != nil {
				h.logger.Warn("failed to write event", "event", env.EventName, "error", err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// next waits for an envelope for at most one heartbeat interval.
func (h *EventStreamHandler) next(ctx context.Context) (events.Envelope, error) {
	if h.heartbeat <= 0 {
		return h.source.Next(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, h.heartbeat)
	defer cancel()
	return h.source.Next(ctx)
}
