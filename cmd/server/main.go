package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drakleaf/rpc-hub/internal/api"
	"github.com/drakleaf/rpc-hub/internal/config"
	"github.com/drakleaf/rpc-hub/internal/notify"
	"github.com/drakleaf/rpc-hub/internal/presence"
	"github.com/drakleaf/rpc-hub/internal/repository/postgres"
	"github.com/drakleaf/rpc-hub/internal/rpc"
	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/drakleaf/rpc-hub/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

func main() {
	config.InitLogging("info")

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		zap.S().Fatalw("failed to load config", "error", err)
	}
	config.InitLogging(cfg.Level)
	defer zap.L().Sync()

	// Initialize database
	logLevel := logger.Warn
	if cfg.IsProduction() {
		logLevel = logger.Error
	}
	db, err := postgres.NewConnection(cfg.DatabaseURL, logLevel)
	if err != nil {
		zap.S().Fatalw("failed to connect to database", "error", err)
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	notifiers := notify.Multi{hub}
	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS.URL)
		if err != nil {
			zap.S().Fatalw("failed to connect to nats", "url", cfg.NATS.URL, "error", err)
		}
		defer nc.Drain()
		notifiers = append(notifiers, notify.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix))
	}

	// Initialize presence sessions
	manager := presence.NewManager(repos.User, repos.PresenceConfig, rpc.NewDialer(cfg.RPC.IPCPath), presence.Options{
		Timeout:  cfg.RPC.Timeout,
		Notifier: notifiers,
	})

	if err := manager.Restore(context.Background()); err != nil {
		zap.S().Warnw("some presences could not be restored", "error", err)
	}

	ctx, stopReconcile := context.WithCancel(context.Background())
	reconciler := presence.NewReconciler(manager, cfg.RPC.ReconcileInterval)
	go reconciler.Run(ctx)

	// Initialize services
	services := service.NewServices(repos, manager, cfg)

	// Initialize router
	router := api.NewRouter(services, hub, cfg)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		zap.S().Infow("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalw("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.S().Infow("shutting down server")

	stopReconcile()
	reconciler.Wait()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("server forced to shutdown", "error", err)
	}

	hub.Stop()
	// references stay in the store so the next boot restores these sessions
	manager.Close()

	zap.S().Infow("server stopped")
}
