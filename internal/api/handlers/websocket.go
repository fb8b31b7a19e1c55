package handlers

import (
	"net/http"

	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/drakleaf/rpc-hub/internal/websocket"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub             *websocket.Hub
	authService     *service.AuthService
	presenceService *service.PresenceService
}

func NewWebSocketHandler(hub *websocket.Hub, authService *service.AuthService, presenceService *service.PresenceService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:             hub,
		authService:     authService,
		presenceService: presenceService,
	}
}

// Handle upgrades the request and subscribes it to the caller's presence events. The first
// message is a snapshot of the caller's current status.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.authService.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Debugw("websocket upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, userID)

	status, err := h.presenceService.Status(r.Context(), userID)
	if err != nil {
		msg, _ := websocket.NewMessage(websocket.MessageTypeError, websocket.ErrorPayload{
			Code:    "STATUS_UNAVAILABLE",
			Message: "Could not load presence status",
		})
		client.Send(msg)
	} else if msg, err := websocket.NewMessage(websocket.MessageTypeSnapshot, status); err == nil {
		client.Send(msg)
	}

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
