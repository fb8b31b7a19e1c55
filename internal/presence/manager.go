// Package presence owns the live Rich Presence connections of every user. At most one
// connection exists per user and the store's active reference is the source of truth used to
// bring connections back after restarts and silent socket deaths.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/repository"
	"github.com/drakleaf/rpc-hub/internal/rpc"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds connect, update and store calls when Options.Timeout is unset.
const DefaultTimeout = 5 * time.Second

type session struct {
	userID        int64
	configID      uuid.UUID
	applicationID string
	activity      *rpc.Activity
	conn          rpc.Connection
	activatedAt   time.Time
	lastUpdate    time.Time
}

// SessionInfo is a point-in-time copy of a live session.
type SessionInfo struct {
	UserID        int64     `json:"userId,string"`
	ConfigID      uuid.UUID `json:"configId"`
	ApplicationID string    `json:"applicationId"`
	ActivatedAt   time.Time `json:"activatedAt"`
	LastUpdate    time.Time `json:"lastSuccessfulUpdate"`
}

// Options configures a Manager. The zero value is usable.
type Options struct {
	// Timeout bounds each connect and update call. Zero means DefaultTimeout.
	Timeout  time.Duration
	Notifier Notifier
	// Now replaces time.Now, mainly for tests.
	Now func() time.Time
}

// Manager is the session registry. A single mutex covers the session map and every
// connection handle; Activate, Deactivate, ListActive and each reconciliation tick hold it
// for their whole duration.
type Manager struct {
	mu        sync.Mutex
	sessions  map[int64]*session
	users     repository.UserRepository
	configs   repository.PresenceConfigRepository
	transport rpc.Transport
	notifier  Notifier
	timeout   time.Duration
	now       func() time.Time
}

func NewManager(users repository.UserRepository, configs repository.PresenceConfigRepository, transport rpc.Transport, opts Options) *Manager {
	m := &Manager{
		sessions:  make(map[int64]*session),
		users:     users,
		configs:   configs,
		transport: transport,
		notifier:  opts.Notifier,
		timeout:   opts.Timeout,
		now:       opts.Now,
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Activate replaces the user's live session with one rendering cfg and marks cfg active in
// the store. On failure the user is left without a session and without an active reference.
func (m *Manager) Activate(ctx context.Context, userID int64, cfg *domain.PresenceConfig) error {
	if !cfg.Activatable() {
		activationCounter.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: application id is required", domain.ErrInvalidConfig)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.replaceLocked(ctx, userID, cfg)
	activationCounter.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		zap.S().Warnw("presence activation failed",
			"user_id", userID,
			"config_id", cfg.ID,
			"error", err,
		)
		m.emit(EventActivationFailed, userID, &cfg.ID, err)

		if storeErr := m.setActive(ctx, userID, nil); storeErr != nil {
			return fmt.Errorf("%w; clear active config: %w", err, storeErr)
		}
		return err
	}

	configID := cfg.ID
	if err := m.setActive(ctx, userID, &configID); err != nil {
		m.dropLocked(userID)
		return fmt.Errorf("persist active config: %w", err)
	}

	zap.S().Infow("presence activated",
		"user_id", userID,
		"config_id", cfg.ID,
		"application_id", sess.applicationID,
	)
	m.emit(EventActivated, userID, &configID, nil)
	return nil
}

// Deactivate closes the user's session if any and always clears the persisted reference.
func (m *Manager) Deactivate(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existed := m.dropLocked(userID)

	if err := m.setActive(ctx, userID, nil); err != nil {
		return fmt.Errorf("clear active config: %w", err)
	}

	if existed {
		zap.S().Infow("presence deactivated", "user_id", userID)
		m.emit(EventDeactivated, userID, nil, nil)
	}
	return nil
}

// ListActive returns the users that have a live session, in ascending order.
func (m *Manager) ListActive() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]int64, 0, len(m.sessions))
	for id := range m.sessions {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func (m *Manager) Session(userID int64) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return SessionInfo{}, false
	}
	return sess.info(), true
}

// Close tears down every live connection without touching the store, so the next boot
// restores the same sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID := range m.sessions {
		m.dropLocked(userID)
	}
	zap.S().Infow("presence manager closed")
}

// replaceLocked tears down any existing session, then opens and registers a new one. It
// never writes the store.
func (m *Manager) replaceLocked(ctx context.Context, userID int64, cfg *domain.PresenceConfig) (*session, error) {
	m.dropLocked(userID)

	sess, err := m.open(ctx, userID, cfg)
	if err != nil {
		return nil, err
	}

	m.sessions[userID] = sess
	sessionsActiveGauge.Set(float64(len(m.sessions)))
	return sess, nil
}

// open runs connect then update. A connection that fails to render is closed before
// returning so no blank presence is left behind.
func (m *Manager) open(ctx context.Context, userID int64, cfg *domain.PresenceConfig) (*session, error) {
	connectCtx, cancel := context.WithTimeout(ctx, m.timeout)
	conn, err := m.transport.Connect(connectCtx, cfg.ApplicationID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}

	now := m.now()
	activity := BuildActivity(cfg, now)

	updateCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err = conn.SetActivity(updateCtx, activity)
	cancel()
	if err != nil {
		closeQuietly(userID, conn)
		return nil, fmt.Errorf("%w: %v", domain.ErrUpdate, err)
	}

	return &session{
		userID:        userID,
		configID:      cfg.ID,
		applicationID: cfg.ApplicationID,
		activity:      activity,
		conn:          conn,
		activatedAt:   now,
		lastUpdate:    now,
	}, nil
}

// setActive writes the active reference once the connection work is done. A caller that
// goes away at this point must not leave the store disagreeing with the registry.
func (m *Manager) setActive(ctx context.Context, userID int64, configID *uuid.UUID) error {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	return m.users.SetActiveConfigID(storeCtx, userID, configID)
}

// dropLocked closes and forgets the user's session. It reports whether one existed.
func (m *Manager) dropLocked(userID int64) bool {
	sess, ok := m.sessions[userID]
	if !ok {
		return false
	}
	delete(m.sessions, userID)
	sessionsActiveGauge.Set(float64(len(m.sessions)))
	closeQuietly(userID, sess.conn)
	return true
}

func (m *Manager) emit(t EventType, userID int64, configID *uuid.UUID, err error) {
	event := Event{
		Type:     t,
		UserID:   userID,
		ConfigID: configID,
		At:       m.now(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	m.notifier.Notify(event)
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		UserID:        s.userID,
		ConfigID:      s.configID,
		ApplicationID: s.applicationID,
		ActivatedAt:   s.activatedAt,
		LastUpdate:    s.lastUpdate,
	}
}

func closeQuietly(userID int64, conn rpc.Connection) {
	if err := conn.Close(); err != nil && !errors.Is(err, rpc.ErrClosed) {
		zap.S().Debugw("presence connection close failed",
			"user_id", userID,
			"error", err,
		)
	}
}
