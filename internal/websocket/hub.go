package websocket

import (
	"encoding/json"
	"sync"

	"github.com/drakleaf/rpc-hub/internal/presence"
	"go.uber.org/zap"
)

const eventBuffer = 256

// Hub fans presence events out to the websocket clients of the affected user. It implements
// presence.Notifier; Notify never blocks, so a slow hub drops events instead of stalling the
// session registry.
type Hub struct {
	clients    map[int64]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan presence.Event
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopped    bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan presence.Event, eventBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			for _, set := range h.clients {
				for client := range set {
					client.Close()
				}
			}
			h.clients = make(map[int64]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if !h.stopped {
				set, ok := h.clients[client.userID]
				if !ok {
					set = make(map[*Client]bool)
					h.clients[client.userID] = set
				}
				set[client] = true
			} else {
				client.Close()
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case event := <-h.events:
			h.deliver(event)
		}
	}
}

// Stop closes every client and blocks until Run has returned.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	close(h.stop)
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister safely unregisters a client, handling the case where the hub may be stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Notify(event presence.Event) {
	select {
	case h.events <- event:
	default:
		zap.S().Warnw("websocket hub backlog full, dropping event",
			"user_id", event.UserID,
			"type", event.Type,
		)
	}
}

// ClientCount returns how many connections the user has open.
func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) deliver(event presence.Event) {
	msg, err := NewMessage(MessageTypePresenceEvent, event)
	if err != nil {
		zap.S().Errorw("failed to encode presence event", "error", err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		zap.S().Errorw("failed to encode presence event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[event.UserID] {
		if !client.trySend(data) {
			// client is not keeping up
			h.removeLocked(client)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	client.Close()
}
