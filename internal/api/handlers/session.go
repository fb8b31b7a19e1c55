package handlers

import (
	"net/http"
	"strconv"

	"github.com/drakleaf/rpc-hub/internal/service"
)

type SessionHandler struct {
	presenceService *service.PresenceService
}

func NewSessionHandler(presenceService *service.PresenceService) *SessionHandler {
	return &SessionHandler{presenceService: presenceService}
}

type SessionsResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// List returns the users that currently have a live connection.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	active := h.presenceService.ListSessions()

	users := make([]string, 0, len(active))
	for _, id := range active {
		users = append(users, strconv.FormatInt(id, 10))
	}

	writeJSON(w, http.StatusOK, SessionsResponse{Users: users, Count: len(users)})
}
