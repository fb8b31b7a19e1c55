package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is keyed by the Discord snowflake of the account.
type User struct {
	ID             int64      `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	Username       string     `json:"username"`
	ActiveConfigID *uuid.UUID `json:"activeConfigId" gorm:"type:uuid;index"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type APIKey struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    int64     `json:"userId,string" gorm:"uniqueIndex;not null"`
	Prefix    string    `json:"prefix" gorm:"uniqueIndex;not null"`
	KeyHash   string    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}
