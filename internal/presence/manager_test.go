package presence_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/presence"
	"github.com/drakleaf/rpc-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []presence.Event
}

func (r *eventRecorder) Notify(e presence.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) Types() []presence.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]presence.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type harness struct {
	manager   *presence.Manager
	transport *testutil.FakeTransport
	users     *testutil.MemoryUserRepository
	configs   *testutil.MemoryConfigRepository
	events    *eventRecorder
	clock     *fakeClock
}

func newHarness(t *testing.T, opts presence.Options) *harness {
	t.Helper()

	users, configs := testutil.NewMemoryStore()
	h := &harness{
		transport: testutil.NewFakeTransport(),
		users:     users,
		configs:   configs,
		events:    &eventRecorder{},
	}
	if opts.Now == nil {
		h.clock = newFakeClock()
		opts.Now = h.clock.Now
	}
	opts.Notifier = h.events
	h.manager = presence.NewManager(users, configs, h.transport, opts)
	t.Cleanup(h.manager.Close)
	return h
}

func (h *harness) activeRef(t *testing.T, userID int64) *string {
	t.Helper()
	ref, err := h.users.GetActiveConfigID(context.Background(), userID)
	require.NoError(t, err)
	if ref == nil {
		return nil
	}
	s := ref.String()
	return &s
}

func activityJSON(t *testing.T, conn *testutil.FakeConn) map[string]any {
	t.Helper()
	activities := conn.Activities()
	require.NotEmpty(t, activities)
	raw, err := json.Marshal(activities[len(activities)-1])
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestManager_Activate(t *testing.T) {
	h := newHarness(t, presence.Options{Now: time.Now})
	ctx := context.Background()

	cfg := testutil.NewPresenceConfigBuilder().
		WithOwner(42).
		WithApplicationID("123").
		WithDetails("Coding").
		WithTimestamp(domain.TimestampModeLive, nil).
		Create(t, h.configs)

	before := time.Now()
	err := h.manager.Activate(ctx, 42, cfg)
	require.NoError(t, err)

	assert.Equal(t, []int64{42}, h.manager.ListActive())
	ref := h.activeRef(t, 42)
	require.NotNil(t, ref)
	assert.Equal(t, cfg.ID.String(), *ref)

	conn := h.transport.Last()
	require.NotNil(t, conn)
	assert.Equal(t, "123", conn.ApplicationID)

	payload := activityJSON(t, conn)
	assert.Equal(t, "Coding", payload["details"])
	assert.NotContains(t, payload, "buttons")
	assert.NotContains(t, payload, "state")

	timestamps, ok := payload["timestamps"].(map[string]any)
	require.True(t, ok, "start timestamp expected")
	start := time.Unix(int64(timestamps["start"].(float64)), 0)
	assert.WithinDuration(t, before, start, 2*time.Second)

	info, ok := h.manager.Session(42)
	require.True(t, ok)
	assert.Equal(t, cfg.ID, info.ConfigID)
	assert.Equal(t, []presence.EventType{presence.EventActivated}, h.events.Types())
}

func TestManager_ActivateInvalidConfig(t *testing.T) {
	h := newHarness(t, presence.Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  *domain.PresenceConfig
	}{
		{
			name: "empty application id",
			cfg:  testutil.NewPresenceConfigBuilder().WithApplicationID("").Build(),
		},
		{
			name: "blank application id",
			cfg:  testutil.NewPresenceConfigBuilder().WithApplicationID("   ").Build(),
		},
		{
			name: "nil config",
			cfg:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.manager.Activate(ctx, 42, tt.cfg)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}

	assert.Zero(t, h.transport.ConnectCalls())
	assert.Zero(t, h.users.SetCalls())
	assert.Empty(t, h.manager.ListActive())
	assert.Nil(t, h.activeRef(t, 42))
}

func TestManager_ActivateTwiceKeepsOneHandle(t *testing.T) {
	h := newHarness(t, presence.Options{})
	ctx := context.Background()

	first := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
	second := testutil.NewPresenceConfigBuilder().WithOwner(42).WithApplicationID("999").Create(t, h.configs)

	require.NoError(t, h.manager.Activate(ctx, 42, first))
	require.NoError(t, h.manager.Activate(ctx, 42, second))

	// the first handle was already closed when the second connect started
	assert.Equal(t, []int{0, 0}, h.transport.OpenAtConnect())
	assert.Equal(t, 1, h.transport.OpenCount())

	conns := h.transport.Conns()
	require.Len(t, conns, 2)
	assert.True(t, conns[0].Closed())
	assert.False(t, conns[1].Closed())

	assert.Equal(t, []int64{42}, h.manager.ListActive())
	assert.Equal(t, second.ID.String(), *h.activeRef(t, 42))
}

func TestManager_ActivateFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		timeout time.Duration
		wantErr error
	}{
		{
			name: "connect failure",
			setup: func(h *harness) {
				h.transport.SetConnectErr(errors.New("no discord client"))
			},
			wantErr: domain.ErrConnection,
		},
		{
			name: "connect timeout",
			setup: func(h *harness) {
				h.transport.BlockConnect = true
			},
			timeout: 50 * time.Millisecond,
			wantErr: domain.ErrConnection,
		},
		{
			name: "update failure",
			setup: func(h *harness) {
				h.transport.SetUpdateErr(errors.New("invalid payload"))
			},
			wantErr: domain.ErrUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, presence.Options{Timeout: tt.timeout})
			ctx := context.Background()

			previous := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
			require.NoError(t, h.manager.Activate(ctx, 42, previous))

			tt.setup(h)
			next := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)

			start := time.Now()
			err := h.manager.Activate(ctx, 42, next)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Less(t, time.Since(start), 2*time.Second)

			assert.Empty(t, h.manager.ListActive())
			assert.Nil(t, h.activeRef(t, 42))
			assert.Zero(t, h.transport.OpenCount(), "no handle may stay open after a failed activation")

			types := h.events.Types()
			assert.Equal(t, presence.EventActivationFailed, types[len(types)-1])
		})
	}
}

func TestManager_ActivateStoreError(t *testing.T) {
	h := newHarness(t, presence.Options{})
	cfg := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)

	storeErr := errors.New("connection reset by peer")
	h.users.SetErr(storeErr)

	err := h.manager.Activate(context.Background(), 42, cfg)
	assert.ErrorIs(t, err, storeErr)
	assert.Empty(t, h.manager.ListActive())
	assert.Zero(t, h.transport.OpenCount())
}

func TestManager_Deactivate(t *testing.T) {
	tests := []struct {
		name     string
		activate bool
	}{
		{name: "active session", activate: true},
		{name: "no session", activate: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, presence.Options{})
			ctx := context.Background()

			if tt.activate {
				cfg := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
				require.NoError(t, h.manager.Activate(ctx, 42, cfg))
			} else {
				// a stale reference must be cleared even without a live session
				cfg := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
				require.NoError(t, h.users.SetActiveConfigID(ctx, 42, &cfg.ID))
			}

			require.NoError(t, h.manager.Deactivate(ctx, 42))
			require.NoError(t, h.manager.Deactivate(ctx, 42))

			assert.Empty(t, h.manager.ListActive())
			assert.Nil(t, h.activeRef(t, 42))
			assert.Zero(t, h.transport.OpenCount())
		})
	}
}

func TestManager_DeactivateSwallowsCloseError(t *testing.T) {
	h := newHarness(t, presence.Options{})
	ctx := context.Background()

	cfg := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
	require.NoError(t, h.manager.Activate(ctx, 42, cfg))
	h.transport.Last().FailClose(errors.New("pipe already broken"))

	require.NoError(t, h.manager.Deactivate(ctx, 42))
	assert.Empty(t, h.manager.ListActive())
	assert.Equal(t, []presence.EventType{presence.EventActivated, presence.EventDeactivated}, h.events.Types())
}

func TestManager_DeactivateStoreError(t *testing.T) {
	h := newHarness(t, presence.Options{})
	ctx := context.Background()

	cfg := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
	require.NoError(t, h.manager.Activate(ctx, 42, cfg))

	h.users.SetErr(errors.New("database is down"))
	err := h.manager.Deactivate(ctx, 42)
	assert.Error(t, err)
	assert.Empty(t, h.manager.ListActive(), "the live session is closed even when the store write fails")
}

func TestManager_DeactivateAfterCallerCancels(t *testing.T) {
	h := newHarness(t, presence.Options{})

	cfg := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
	require.NoError(t, h.manager.Activate(context.Background(), 42, cfg))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.manager.Deactivate(ctx, 42))

	assert.Empty(t, h.manager.ListActive())
	assert.Nil(t, h.activeRef(t, 42), "a cancelled request still clears the stored reference")
}

func TestMemoryUserRepository_HonorsContext(t *testing.T) {
	users, _ := testutil.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := testutil.NewPresenceConfigBuilder().Build().ID
	assert.ErrorIs(t, users.SetActiveConfigID(ctx, 42, &id), context.Canceled)
}

func TestManager_CloseKeepsReferences(t *testing.T) {
	h := newHarness(t, presence.Options{})
	ctx := context.Background()

	cfg := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
	require.NoError(t, h.manager.Activate(ctx, 42, cfg))

	h.manager.Close()

	assert.Empty(t, h.manager.ListActive())
	assert.Zero(t, h.transport.OpenCount())
	require.NotNil(t, h.activeRef(t, 42))
	assert.Equal(t, cfg.ID.String(), *h.activeRef(t, 42))
}

func TestManager_ConcurrentActivationsSameUser(t *testing.T) {
	h := newHarness(t, presence.Options{Now: time.Now})
	ctx := context.Background()

	configs := make([]*domain.PresenceConfig, 4)
	for i := range configs {
		configs[i] = testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, h.configs)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 5 {
			case 3:
				_ = h.manager.Deactivate(ctx, 42)
			case 4:
				h.manager.Reconcile(ctx)
			default:
				_ = h.manager.Activate(ctx, 42, configs[i%len(configs)])
			}
		}(i)
	}
	wg.Wait()

	for _, open := range h.transport.OpenAtConnect() {
		assert.Zero(t, open, "a connect started while another handle for the user was open")
	}
	assert.LessOrEqual(t, h.transport.OpenCount(), 1)
}
