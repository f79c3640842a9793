package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tonequest/api/internal/middleware"
	"github.com/tonequest/api/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement happens in the CORS middleware; the
		// upgrade itself accepts any origin.
		return true
	},
}

// LiveHandlers holds dependencies for the live leaderboard stream.
type LiveHandlers struct {
	broadcaster *stream.Broadcaster
}

// NewLiveHandlers creates a new LiveHandlers instance.
func NewLiveHandlers(broadcaster *stream.Broadcaster) *LiveHandlers {
	return &LiveHandlers{broadcaster: broadcaster}
}

// Subscribe handles GET /leaderboard/live.
// Upgrades the connection to WebSocket and pushes a leaderboard snapshot
// immediately, then again after every applied score delta.
func (h *LiveHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	h.broadcaster.Subscribe(conn)
	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to leaderboard", "request_id", requestID)

	if err := h.broadcaster.SendSnapshot(ctx, conn); err != nil {
		slog.WarnContext(ctx, "failed to send initial snapshot", "error", err)
	}

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed", "request_id", requestID)
	}()

	// Clients don't send messages; reading only detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly", "error", err)
			}
			return
		}
	}
}
