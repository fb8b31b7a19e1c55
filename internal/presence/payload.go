package presence

import (
	"strconv"
	"strings"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/rpc"
)

// BuildActivity maps the set fields of cfg onto the SET_ACTIVITY payload. now is the
// activation time used by the live timestamp mode.
func BuildActivity(cfg *domain.PresenceConfig, now time.Time) *rpc.Activity {
	activity := &rpc.Activity{
		Type:    cfg.ActivityType.Code(),
		Details: value(cfg.Details),
		State:   value(cfg.State),
	}

	if start, ok := startTimestamp(cfg, now); ok {
		activity.Timestamps = &rpc.Timestamps{Start: start}
	}

	assets := rpc.Assets{
		LargeImage: value(cfg.LargeImage),
		LargeText:  value(cfg.LargeImageText),
		SmallImage: value(cfg.SmallImage),
		SmallText:  value(cfg.SmallImageText),
	}
	if assets != (rpc.Assets{}) {
		activity.Assets = &assets
	}

	for _, b := range cfg.Buttons {
		if b.Label == "" || b.URL == "" {
			continue
		}
		activity.Buttons = append(activity.Buttons, rpc.Button{Label: b.Label, URL: b.URL})
	}

	return activity
}

func startTimestamp(cfg *domain.PresenceConfig, now time.Time) (int64, bool) {
	switch cfg.TimestampMode {
	case domain.TimestampModeLive:
		return now.Unix(), true
	case domain.TimestampModeFixed:
		if cfg.FixedTimestamp == nil {
			return 0, false
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(*cfg.FixedTimestamp), 10, 64)
		if err != nil || ts <= 0 {
			return 0, false
		}
		return ts, true
	default:
		return 0, false
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
