package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrConfigNotFound):
		http.Error(w, "Presence config not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNotConfigOwner):
		http.Error(w, "Presence config belongs to another user", http.StatusForbidden)
	case errors.Is(err, domain.ErrTooManyButtons),
		errors.Is(err, domain.ErrInvalidButton),
		errors.Is(err, domain.ErrInvalidConfig):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrConnection), errors.Is(err, domain.ErrUpdate):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		zap.S().Errorw("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
