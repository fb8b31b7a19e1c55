package presence

import (
	"context"
	"errors"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"go.uber.org/zap"
)

// DefaultReconcileInterval is used when NewReconciler gets a non-positive interval.
const DefaultReconcileInterval = 30 * time.Second

// Reconciler periodically probes every live session and restores the ones that died.
type Reconciler struct {
	manager  *Manager
	interval time.Duration
	done     chan struct{}
}

func NewReconciler(manager *Manager, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{
		manager:  manager,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run ticks until ctx is cancelled. It should be called in a goroutine.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer func() {
		ticker.Stop()
		close(r.done)
	}()

	zap.S().Infow("reconciliation started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			zap.S().Infow("reconciliation stopped")
			return
		case <-ticker.C:
			r.manager.Reconcile(ctx)
		}
	}
}

// Wait blocks until Run has returned.
func (r *Reconciler) Wait() {
	<-r.done
}

// Reconcile runs one tick: probe each session by re-sending its current activity, and on
// failure rebuild it from the persisted active config. Sessions that cannot be rebuilt are
// dropped while their persisted reference is kept for a later attempt.
func (m *Manager) Reconcile(ctx context.Context) {
	start := time.Now()
	defer func() {
		tickHistogram.Observe(time.Since(start).Seconds())
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	userIDs := make([]int64, 0, len(m.sessions))
	for userID := range m.sessions {
		userIDs = append(userIDs, userID)
	}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		sess, ok := m.sessions[userID]
		if !ok {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := sess.conn.SetActivity(probeCtx, sess.activity)
		cancel()
		probeCounter.WithLabelValues(resultLabel(err)).Inc()
		if err == nil {
			sess.lastUpdate = m.now()
			continue
		}

		zap.S().Infow("presence probe failed",
			"user_id", userID,
			"config_id", sess.configID,
			"error", err,
		)
		m.recoverLocked(ctx, userID)
	}
}

func (m *Manager) recoverLocked(ctx context.Context, userID int64) {
	ref, err := m.users.GetActiveConfigID(ctx, userID)
	if err != nil {
		zap.S().Errorw("failed to read active config during reconciliation",
			"user_id", userID,
			"error", err,
		)
		return
	}
	if ref == nil {
		m.dropLocked(userID)
		reconnectCounter.WithLabelValues("no_reference").Inc()
		m.emit(EventDropped, userID, nil, errors.New("no active config"))
		return
	}

	cfg, err := m.configs.GetByID(ctx, *ref)
	if errors.Is(err, domain.ErrConfigNotFound) {
		m.dropLocked(userID)
		reconnectCounter.WithLabelValues("no_reference").Inc()
		m.emit(EventDropped, userID, ref, err)
		return
	}
	if err != nil {
		zap.S().Errorw("failed to load active config during reconciliation",
			"user_id", userID,
			"config_id", *ref,
			"error", err,
		)
		return
	}

	if !cfg.Activatable() {
		m.dropLocked(userID)
		reconnectCounter.WithLabelValues("failure").Inc()
		m.emit(EventDropped, userID, ref, domain.ErrInvalidConfig)
		return
	}

	if _, err := m.replaceLocked(ctx, userID, cfg); err != nil {
		reconnectCounter.WithLabelValues("failure").Inc()
		zap.S().Warnw("presence reconnect failed, session dropped",
			"user_id", userID,
			"config_id", cfg.ID,
			"error", err,
		)
		m.emit(EventDropped, userID, ref, err)
		return
	}

	reconnectCounter.WithLabelValues("success").Inc()
	zap.S().Infow("presence reconnected",
		"user_id", userID,
		"config_id", cfg.ID,
	)
	m.emit(EventReconnected, userID, ref, nil)
}
