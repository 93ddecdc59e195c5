package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"ldap-admin/internal/event"
)

// Hub fans activity events out to connected websocket clients. All client
// bookkeeping happens on the Run goroutine.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}

	bus event.Bus
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		bus:        bus,
	}
}

// Run serves the hub until ctx is cancelled or the bus subscription closes.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			slog.Debug("websocket client connected", "actor", client.actor, "clients", len(h.clients))
		case client := <-h.unregister:
			h.drop(client)
		case reply := <-h.count:
			reply <- len(h.clients)
		case e, ok := <-events:
			if !ok {
				return
			}

			message, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "type", e.Type, "error", err)
				continue
			}

			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slog.Warn("dropping slow websocket client", "actor", client.actor)
					h.drop(client)
				}
			}
		}
	}
}

// ClientCount reports the number of registered clients, or 0 once the hub has
// stopped.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) closeAll() {
	for client := range h.clients {
		h.drop(client)
	}
}
