package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// Hub maintains the set of connected dashboard clients and broadcasts feed
// events to them.
type Hub struct {
	// clients maps identity emails to their connections. One identity can
	// have several browser tabs open.
	clients map[string]map[*Client]bool

	// broadcast channel for events
	broadcast chan domain.FeedEvent

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// done is closed when Run returns
	done chan struct{}

	// mu protects clients
	mu sync.RWMutex

	logger *slog.Logger
}

var _ ports.Notifier = (*Hub)(nil)

// NewHub creates a new feed hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan domain.FeedEvent, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "feed_hub"),
	}
}

// Broadcast queues an event for every client. A full queue drops it.
func (h *Hub) Broadcast(event domain.FeedEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "event_type", event.Type)
	}
}

// TicketArrived broadcasts a newly pushed ticket.
func (h *Hub) TicketArrived(t domain.Ticket) {
	h.Broadcast(domain.FeedEvent{Type: domain.FeedTicketArrived, Ticket: &t})
}

// Notify broadcasts a store notice.
func (h *Hub) Notify(_ context.Context, n domain.Notice) {
	h.Broadcast(domain.FeedEvent{Type: domain.FeedNotice, Notice: &n})
}

// Run is the hub's event loop. It closes every client when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// register hands a client to Run. It reports false once Run has returned.
func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Email] == nil {
		h.clients[client.Email] = make(map[*Client]bool)
	}
	h.clients[client.Email][client] = true

	h.logger.Info("client registered",
		"email", client.Email,
		"total_connections", len(h.clients[client.Email]),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if conns, ok := h.clients[client.Email]; ok {
		if _, exists := conns[client]; exists {
			delete(conns, client)
			if len(conns) == 0 {
				delete(h.clients, client.Email)
			}
			h.logger.Info("client unregistered", "email", client.Email)
		}
	}
	client.CloseSend()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for client := range conns {
			h.removeLocked(client)
		}
	}
}

func (h *Hub) broadcastEvent(event domain.FeedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.clients {
		for client := range conns {
			select {
			case client.Send <- event:
			default:
				h.logger.Warn("client send buffer full, unregistering", "email", client.Email)
				h.removeLocked(client)
			}
		}
	}
}

// ClientCount returns the total number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}
