package presence

import (
	"context"
	"fmt"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Restore re-activates every user the store marks active. It is a best-effort warm start:
// each failure is logged and collected, and the remaining users are still attempted. A
// failed user keeps the persisted reference so the next boot tries again.
func (m *Manager) Restore(ctx context.Context) error {
	assignments, err := m.users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active presences: %w", err)
	}

	zap.S().Infow("restoring active presences", "count", len(assignments))

	var result *multierror.Error
	restored := 0
	for _, a := range assignments {
		if err := m.restoreOne(ctx, a.UserID, a.Config); err != nil {
			restoreCounter.WithLabelValues("failure").Inc()
			zap.S().Warnw("failed to restore presence",
				"user_id", a.UserID,
				"config_id", a.Config.ID,
				"error", err,
			)
			result = multierror.Append(result, fmt.Errorf("user %d: %w", a.UserID, err))
			continue
		}
		restoreCounter.WithLabelValues("success").Inc()
		restored++
	}

	zap.S().Infow("presence restore finished",
		"restored", restored,
		"failed", len(assignments)-restored,
	)
	return result.ErrorOrNil()
}

func (m *Manager) restoreOne(ctx context.Context, userID int64, cfg *domain.PresenceConfig) error {
	if !cfg.Activatable() {
		return fmt.Errorf("%w: application id is required", domain.ErrInvalidConfig)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.replaceLocked(ctx, userID, cfg); err != nil {
		return err
	}
	m.emit(EventRestored, userID, &cfg.ID, nil)
	return nil
}
