package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/drakleaf/rpc-hub/internal/api/middleware"
	"github.com/drakleaf/rpc-hub/internal/config"
	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PresenceHandler struct {
	presenceService *service.PresenceService
	defaultPresence config.DefaultPresence
}

func NewPresenceHandler(presenceService *service.PresenceService, defaultPresence config.DefaultPresence) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		defaultPresence: defaultPresence,
	}
}

type UserPresencesResponse struct {
	UserID  string                   `json:"userId"`
	Configs []*domain.PresenceConfig `json:"configs"`
	Default config.DefaultPresence   `json:"default"`
}

func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	configs, err := h.presenceService.ListConfigs(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if configs == nil {
		configs = []*domain.PresenceConfig{}
	}

	writeJSON(w, http.StatusOK, configs)
}

// Create saves a config and tries to make it live. A failed activation still answers 201;
// the body reports activated=false.
func (h *PresenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req service.ConfigInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.presenceService.CreateConfig(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, configID, ok := h.params(w, r)
	if !ok {
		return
	}

	cfg, err := h.presenceService.GetConfig(r.Context(), userID, configID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (h *PresenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, configID, ok := h.params(w, r)
	if !ok {
		return
	}

	var req service.ConfigInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.presenceService.UpdateConfig(r.Context(), userID, configID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PresenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, configID, ok := h.params(w, r)
	if !ok {
		return
	}

	if err := h.presenceService.DeleteConfig(r.Context(), userID, configID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PresenceHandler) Activate(w http.ResponseWriter, r *http.Request) {
	userID, configID, ok := h.params(w, r)
	if !ok {
		return
	}

	cfg, err := h.presenceService.ActivateConfig(r.Context(), userID, configID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, service.ActivationResult{Config: cfg, Activated: true})
}

func (h *PresenceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.presenceService.DeactivateUser(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PresenceHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.presenceService.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// UserPresences lists a user's configs together with the server default. Callers may only
// read their own listing.
func (h *PresenceHandler) UserPresences(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	if userID != callerID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	configs, err := h.presenceService.ListConfigs(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if configs == nil {
		configs = []*domain.PresenceConfig{}
	}

	writeJSON(w, http.StatusOK, UserPresencesResponse{
		UserID:  strconv.FormatInt(userID, 10),
		Configs: configs,
		Default: h.defaultPresence,
	})
}

func (h *PresenceHandler) params(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, uuid.Nil, false
	}

	configID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid presence config ID", http.StatusBadRequest)
		return 0, uuid.Nil, false
	}
	return userID, configID, true
}
