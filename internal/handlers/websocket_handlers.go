package handlers

import (
	"net/http"

	"chat-engine/internal/auth"
	"chat-engine/internal/config"
	"chat-engine/internal/engine"
	ws "chat-engine/internal/websocket"
	"chat-engine/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	eng         *engine.Engine
	opts        ws.Options
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, eng *engine.Engine, cfg config.WebsocketConfig) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		eng:         eng,
		opts: ws.Options{
			WriteWait:  cfg.WriteWait,
			PongWait:   cfg.PongWait,
			PingPeriod: cfg.PingPeriod(),
			SendBuffer: cfg.SendBuffer,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket authenticates the token, upgrades the transport and starts
// the connection pumps. The connection stays unbound until the client sends
// announceIdentity.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserFromToken(r.Context(), tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewConn(conn, user, h.eng, h.opts)
	logger.Info("User %d opened connection %s", user.ID, client.ID())

	go client.WritePump()
	go client.ReadPump()
}
