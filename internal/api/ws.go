package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

const maxFrameSize = 16 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsError struct {
	Error string `json:"error"`
}

// handleWebSocket serves /ws/chat?token=<jwt>. Each inbound frame is a
// ChatRequest and each outbound frame the ChatResponse or {"error"}.
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.verify(r.URL.Query().Get("token"))
	if err != nil {
		respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "user_id", user, "error", err)
			}
			return
		}

		var out any
		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			out = wsError{Error: "invalid JSON message"}
		} else if resp, err := s.chat(ctx, user, req); err != nil {
			out = wsError{Error: handleError(err).Error()}
		} else {
			out = resp
		}
		if err := conn.WriteJSON(out); err != nil {
			slog.Warn("websocket write failed", "user_id", user, "error", err)
			return
		}
	}
}
