package notify

import "github.com/drakleaf/rpc-hub/internal/presence"

// Multi forwards every event to each notifier in order.
type Multi []presence.Notifier

func (m Multi) Notify(event presence.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(event)
		}
	}
}
