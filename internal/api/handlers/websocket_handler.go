package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/toolshed/marketplace/internal/infrastructure/observability"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WebSocketHandler pushes newly received messages over a websocket. The
// socket is receive-only for clients; messages are sent through the REST API.
type WebSocketHandler struct {
	bus      LiveSubscriber
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a websocket handler accepting the given
// origins. An empty list or "*" accepts any origin.
func NewWebSocketHandler(bus LiveSubscriber, metrics *observability.Metrics, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		bus:     bus,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Serve handles GET /ws/messages
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		return
	}
	defer conn.Close()

	ctx := r.Context()
	feed, sub := openLiveFeed(h.bus, user.ID, "websocket")
	defer sub.Close()
	logger := observability.LoggerFromContext(ctx).With().Str("user_id", sub.UserID()).Logger()

	observability.TrackLiveConnection(ctx, h.metrics, "websocket", 1)
	defer observability.TrackLiveConnection(ctx, h.metrics, "websocket", -1)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logger.Debug().Msg("websocket closed by client")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case message := <-feed:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(map[string]interface{}{"type": "message", "message": message}); err != nil {
				logger.Warn().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}
