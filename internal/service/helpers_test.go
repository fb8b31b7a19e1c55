package service_test

import (
	"testing"

	"github.com/drakleaf/rpc-hub/internal/presence"
	"github.com/drakleaf/rpc-hub/internal/repository"
	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/drakleaf/rpc-hub/internal/testutil"
)

type fixture struct {
	services  *service.Services
	manager   *presence.Manager
	transport *testutil.FakeTransport
	users     *testutil.MemoryUserRepository
	configs   *testutil.MemoryConfigRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users, configs := testutil.NewMemoryStore()
	repos := &repository.Repositories{
		User:           users,
		PresenceConfig: configs,
		APIKey:         testutil.NewMemoryAPIKeyRepository(),
	}
	transport := testutil.NewFakeTransport()
	manager := presence.NewManager(users, configs, transport, presence.Options{})
	t.Cleanup(manager.Close)

	return &fixture{
		services:  service.NewServices(repos, manager, testutil.TestConfig()),
		manager:   manager,
		transport: transport,
		users:     users,
		configs:   configs,
	}
}
