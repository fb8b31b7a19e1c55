package api

import (
	"net/http"

	"github.com/drakleaf/rpc-hub/internal/api/handlers"
	"github.com/drakleaf/rpc-hub/internal/api/middleware"
	"github.com/drakleaf/rpc-hub/internal/config"
	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/drakleaf/rpc-hub/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth, services.APIKey)
	presenceHandler := handlers.NewPresenceHandler(services.Presence, cfg.DefaultPresence)
	sessionHandler := handlers.NewSessionHandler(services.Presence)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth, services.Presence)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth, services.APIKey))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/api-keys", authHandler.IssueAPIKey)

			// Presence routes
			r.Route("/presences", func(r chi.Router) {
				r.Get("/", presenceHandler.List)
				r.Post("/", presenceHandler.Create)
				r.Get("/status", presenceHandler.Status)
				r.Post("/deactivate", presenceHandler.Deactivate)
				r.Get("/{id}", presenceHandler.Get)
				r.Put("/{id}", presenceHandler.Update)
				r.Delete("/{id}", presenceHandler.Delete)
				r.Post("/{id}/activate", presenceHandler.Activate)
			})

			// User routes
			r.Get("/users/{userID}/presences", presenceHandler.UserPresences)

			r.Get("/sessions", sessionHandler.List)
		})

		// WebSocket endpoint
		r.Get("/ws", wsHandler.Handle)
	})

	return r
}
