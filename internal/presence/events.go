package presence

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventActivated        EventType = "activated"
	EventActivationFailed EventType = "activation_failed"
	EventDeactivated      EventType = "deactivated"
	EventRestored         EventType = "restored"
	EventReconnected      EventType = "reconnected"
	EventDropped          EventType = "dropped"
)

// Event describes a change to a user's live session.
type Event struct {
	Type     EventType  `json:"type"`
	UserID   int64      `json:"userId,string"`
	ConfigID *uuid.UUID `json:"configId,omitempty"`
	Error    string     `json:"error,omitempty"`
	At       time.Time  `json:"at"`
}

// Notifier receives session events. Notify is called while the registry lock is held and
// must not block.
type Notifier interface {
	Notify(event Event)
}

type NotifierFunc func(event Event)

func (f NotifierFunc) Notify(event Event) {
	f(event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
