package handlers

import (
	"net/http"

	"github.com/fiora-labs/aura-backend/internal/notify"
	"github.com/fiora-labs/aura-backend/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub         *notify.Hub
	authService *service.AuthService
	log         *zap.Logger
}

func NewWebSocketHandler(hub *notify.Hub, authService *service.AuthService, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, authService: authService, log: log}
}

// Handle authenticates via the token query parameter; browsers cannot set
// an Authorization header on a WebSocket dial.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	userIDStr, ok := (*claims)["sub"].(string)
	if !ok {
		http.Error(w, "Invalid token claims", http.StatusUnauthorized)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	notify.NewClient(h.hub, conn, userID).Register()
}
