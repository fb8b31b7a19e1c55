package handlers

import (
	"net/http"
	"strconv"

	"github.com/drakleaf/rpc-hub/internal/api/middleware"
	"github.com/drakleaf/rpc-hub/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	apiKeys     *service.APIKeyService
}

func NewAuthHandler(authService *service.AuthService, apiKeys *service.APIKeyService) *AuthHandler {
	return &AuthHandler{authService: authService, apiKeys: apiKeys}
}

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type APIKeyResponse struct {
	APIKey string `json:"apiKey"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		ID:       strconv.FormatInt(user.ID, 10),
		Username: user.Username,
	})
}

// IssueAPIKey replaces the caller's API key. The key is only shown in this response.
func (h *AuthHandler) IssueAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	key, err := h.apiKeys.Issue(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to issue API key", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, APIKeyResponse{APIKey: key})
}
