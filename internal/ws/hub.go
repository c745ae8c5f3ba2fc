package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event is a row change pushed to subscribers of an entity table.
type Event struct {
	Table     string          `json:"table"`
	Type      string          `json:"type"`
	Record    json.RawMessage `json:"record"`
	Timestamp time.Time       `json:"commit_timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Subscribed clients by topic (entity table name)
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan Event

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.allClients() {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			for topic := range client.topics {
				if h.rooms[topic] == nil {
					h.rooms[topic] = make(map[*Client]bool)
				}
				h.rooms[topic][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("table", event.Table).Msg("marshal ws event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.Table] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, drop it
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes the client from every room and closes its send channel.
// Caller holds h.mu.
func (h *Hub) drop(client *Client) {
	registered := false
	for topic := range client.topics {
		clients, ok := h.rooms[topic]
		if !ok || !clients[client] {
			continue
		}
		registered = true
		delete(clients, client)
		// Clean up empty rooms
		if len(clients) == 0 {
			delete(h.rooms, topic)
		}
	}
	if registered {
		close(client.send)
	}
}

func (h *Hub) allClients() map[*Client]bool {
	all := make(map[*Client]bool)
	for _, clients := range h.rooms {
		for c := range clients {
			all[c] = true
		}
	}
	return all
}

// Broadcast sends an event to every client subscribed to event.Table.
func (h *Hub) Broadcast(event Event) {
	h.broadcast <- event
}

// Notify marshals record and broadcasts it as a change on table.
func (h *Hub) Notify(table, eventType string, record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("marshal ws record")
		return
	}
	h.Broadcast(Event{
		Table:     table,
		Type:      eventType,
		Record:    payload,
		Timestamp: time.Now().UTC(),
	})
}
