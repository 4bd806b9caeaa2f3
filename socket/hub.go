package socket

import (
	"encoding/json"
	"sync"

	"inkwiki/pkg/logger"
)

const (
	// ChangeType announces a created or updated document.
	ChangeType = "CHANGE"
	// DeleteType announces a removed document.
	DeleteType = "DELETE"
)

// Event is broadcast to every connected client when the store changes, so
// open wiki tabs can refetch the affected title.
type Event struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Revision int64  `json:"revision,omitempty"`
}

type Hub struct {
	Broadcast  chan Event
	Register   chan *Client
	Unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan Event, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Notify hands an event to the hub without blocking the caller. If the
// broadcast buffer is full the event is dropped; clients resync on reload.
func (h *Hub) Notify(event Event) {
	select {
	case h.Broadcast <- event:
	default:
		logger.Sugar.Warnf("Change feed buffer full, dropping %s event for %q", event.Type, event.Title)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.drop(client)

		case event := <-h.Broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling change event: %v", err)
				continue
			}

			// Snapshot recipients so the socket writes happen outside the lock.
			h.mu.Lock()
			recipients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				recipients = append(recipients, client)
			}
			h.mu.Unlock()

			for _, client := range recipients {
				select {
				case client.Send <- payload:
				default:
					// A lagging client must not block the hub.
					logger.Sugar.Warn("Client send buffer full, dropping connection")
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}
