package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ActivityType string

const (
	ActivityTypePlaying   ActivityType = "Playing"
	ActivityTypeStreaming ActivityType = "Streaming"
	ActivityTypeListening ActivityType = "Listening"
	ActivityTypeWatching  ActivityType = "Watching"
	ActivityTypeCompeting ActivityType = "Competing"
)

// Code returns the Discord activity type number. Unknown values fall back to Playing.
func (t ActivityType) Code() int {
	switch t {
	case ActivityTypeStreaming:
		return 1
	case ActivityTypeListening:
		return 2
	case ActivityTypeWatching:
		return 3
	case ActivityTypeCompeting:
		return 5
	default:
		return 0
	}
}

type TimestampMode string

const (
	TimestampModeLive  TimestampMode = "live"
	TimestampModeFixed TimestampMode = "fixed"
	TimestampModeNone  TimestampMode = "none"
)

const MaxButtons = 2

type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// PresenceConfig is a saved Rich Presence a user can activate.
type PresenceConfig struct {
	ID             uuid.UUID                   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OwnerUserID    int64                       `json:"ownerUserId,string" gorm:"index;not null"`
	Name           string                      `json:"name"`
	ApplicationID  string                      `json:"applicationId" gorm:"not null"`
	ActivityType   ActivityType                `json:"activityType" gorm:"not null;default:'Playing'"`
	Details        *string                     `json:"details"`
	State          *string                     `json:"state"`
	TimestampMode  TimestampMode               `json:"timestampMode" gorm:"not null;default:'live'"`
	FixedTimestamp *string                     `json:"fixedTimestamp"`
	LargeImage     *string                     `json:"largeImage"`
	LargeImageText *string                     `json:"largeImageText"`
	SmallImage     *string                     `json:"smallImage"`
	SmallImageText *string                     `json:"smallImageText"`
	Buttons        datatypes.JSONSlice[Button] `json:"buttons"`
	CreatedAt      time.Time                   `json:"createdAt"`
	UpdatedAt      time.Time                   `json:"updatedAt"`
}

// Activatable reports whether the config carries the one field a connection needs.
func (c *PresenceConfig) Activatable() bool {
	return c != nil && strings.TrimSpace(c.ApplicationID) != ""
}

// ActiveAssignment pairs a user with the config their store record marks active.
type ActiveAssignment struct {
	UserID int64
	Config *PresenceConfig
}
