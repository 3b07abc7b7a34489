package realtime

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

const clientBuffer = 16

// Client is one live subscriber. Outbound is closed by Hub.Remove.
type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Outbound chan Event
}

// Hub fans bus events out to connected clients by channel.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "RealtimeHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Subscribe registers a client on the user's own channel.
func (h *Hub) Subscribe(userID uuid.UUID) *Client {
	c := &Client{ID: uuid.New(), UserID: userID, Outbound: make(chan Event, clientBuffer)}
	channel := userID.String()

	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.subscriptions[channel]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[c] = true
	h.log.Debug("Realtime client subscribed", "clientID", c.ID, "channel", channel)
	return c
}

// Remove unsubscribes c and closes its outbound channel. Safe to call twice.
func (h *Hub) Remove(c *Client) {
	if c == nil {
		return
	}
	channel := c.UserID.String()

	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.subscriptions[channel]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.subscriptions, channel)
	}
	close(c.Outbound)
	h.log.Debug("Realtime client removed", "clientID", c.ID, "channel", channel)
}

// Broadcast delivers msg to every client on msg.Channel, dropping it for clients whose
// buffer is full.
func (h *Hub) Broadcast(msg Event) {
	channel := strings.TrimSpace(msg.Channel)
	if channel == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscriptions[channel] {
		select {
		case c.Outbound <- msg:
		default:
			h.log.Warn("Dropping realtime event; outbound buffer full", "clientID", c.ID, "event", msg.Event)
		}
	}
}

func (h *Hub) ClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[userID.String()])
}
