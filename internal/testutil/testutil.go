package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/drakleaf/rpc-hub/internal/api"
	"github.com/drakleaf/rpc-hub/internal/config"
	"github.com/drakleaf/rpc-hub/internal/presence"
	"github.com/drakleaf/rpc-hub/internal/repository"
	repoPostgres "github.com/drakleaf/rpc-hub/internal/repository/postgres"
	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/drakleaf/rpc-hub/internal/websocket"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a migrated connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_rpc_hub"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"api_keys",
		"presence_configs",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	cfg := &config.Config{
		Port:        "0",
		Environment: "test",
	}
	cfg.Auth.JWTSecret = "test-jwt-secret-key-for-testing-only"
	cfg.Auth.JWTExpirationHours = 1
	cfg.Auth.APIKeyCacheTTL = time.Minute
	cfg.RPC.ReconcileInterval = time.Second
	cfg.RPC.Timeout = time.Second
	cfg.NATS.SubjectPrefix = "rpchub"
	cfg.DefaultPresence = config.DefaultPresence{
		ApplicationID: "1419030874640613446",
		Details:       "Using RPC Hub",
	}
	return cfg
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server    *httptest.Server
	DB        *TestDB
	Repos     *repository.Repositories
	Services  *service.Services
	Manager   *presence.Manager
	Transport *FakeTransport
	Hub       *websocket.Hub
	Config    *config.Config
}

// NewTestServer creates a complete test server backed by postgres and a fake Discord transport
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	cfg := TestConfig()

	repos := repoPostgres.NewRepositories(testDB.DB)
	hub := websocket.NewHub()
	go hub.Run()

	transport := NewFakeTransport()
	manager := presence.NewManager(repos.User, repos.PresenceConfig, transport, presence.Options{
		Timeout:  cfg.RPC.Timeout,
		Notifier: hub,
	})

	services := service.NewServices(repos, manager, cfg)
	router := api.NewRouter(services, hub, cfg)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:    server,
		DB:        testDB,
		Repos:     repos,
		Services:  services,
		Manager:   manager,
		Transport: transport,
		Hub:       hub,
		Config:    cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
		manager.Close()
	})

	return ts
}

// Token issues an access token for userID
func (ts *TestServer) Token(t *testing.T, userID int64) string {
	t.Helper()

	token, err := ts.Services.Auth.IssueToken(context.Background(), service.IssueTokenInput{
		UserID:   userID,
		Username: fmt.Sprintf("user-%d", userID),
	})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + ts.Server.URL[4:] // Replace "http" with "ws"
	return fmt.Sprintf("%s/api/v1/ws?token=%s", wsURL, token)
}
