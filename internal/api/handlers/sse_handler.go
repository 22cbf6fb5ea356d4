package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/toolshed/marketplace/internal/infrastructure/observability"
)

// SSEHandler streams newly received messages over Server-Sent Events
type SSEHandler struct {
	bus       LiveSubscriber
	metrics   *observability.Metrics
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(bus LiveSubscriber, metrics *observability.Metrics) *SSEHandler {
	return &SSEHandler{
		bus:       bus,
		metrics:   metrics,
		heartbeat: 30 * time.Second,
	}
}

// StreamMessages handles GET /api/stream/messages
func (h *SSEHandler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	feed, sub := openLiveFeed(h.bus, user.ID, "sse")
	defer sub.Close()

	observability.TrackLiveConnection(ctx, h.metrics, "sse", 1)
	defer observability.TrackLiveConnection(ctx, h.metrics, "sse", -1)

	logger := observability.LoggerFromContext(ctx).With().Str("user_id", sub.UserID()).Logger()
	logger.Debug().Msg("message stream opened")

	h.sendEvent(w, "connected", map[string]interface{}{
		"user_id":   user.ID,
		"timestamp": time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("message stream closed")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case message := <-feed:
			h.sendEvent(w, "message", message)
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
