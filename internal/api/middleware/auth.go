package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/drakleaf/rpc-hub/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
)

// Auth accepts either a bearer JWT or an X-API-Key header and puts the caller's user id in
// the request context.
func Auth(authService *service.AuthService, apiKeys *service.APIKeyService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				userID int64
				err    error
			)

			if key := r.Header.Get("X-API-Key"); key != "" {
				userID, err = apiKeys.Verify(r.Context(), key)
				if err != nil {
					zap.S().Debugw("api key rejected", "path", r.URL.Path, "error", err)
					http.Error(w, "Invalid API key", http.StatusUnauthorized)
					return
				}
			} else {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					http.Error(w, "Authorization header required", http.StatusUnauthorized)
					return
				}

				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
					return
				}

				userID, err = authService.ValidateToken(parts[1])
				if err != nil {
					zap.S().Debugw("token rejected", "path", r.URL.Path, "error", err)
					http.Error(w, "Invalid token", http.StatusUnauthorized)
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
