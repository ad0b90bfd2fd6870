// Package hub fans stream updates out to the connected WebSocket
// clients. The hub is a pure reader of the tracker's output; it adds no
// mutation path of its own.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jasper9/nbastats.fun/internal/client"
	"github.com/jasper9/nbastats.fun/internal/metrics"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

// Hub maintains the set of active clients and broadcasts updates to them
type Hub struct {
	clients   map[*client.Client]bool
	clientsMu sync.RWMutex

	broadcast  chan models.StreamUpdate
	register   chan *client.Client
	unregister chan *client.Client

	metrics *metrics.Metrics
}

// NewHub creates a hub. metrics may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*client.Client]bool),
		broadcast:  make(chan models.StreamUpdate, 1000),
		register:   make(chan *client.Client),
		unregister: make(chan *client.Client),
		metrics:    m,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	log.Printf("[hub] started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case update := <-h.broadcast:
			h.broadcastUpdate(update)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *client.Client) {
	h.register <- c
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *client.Client) {
	h.unregister <- c
}

// Broadcast queues an update for fan-out without blocking the consumer.
// A full buffer drops the update; the durable record still has it.
func (h *Hub) Broadcast(update models.StreamUpdate) {
	select {
	case h.broadcast <- update:
	default:
		log.Printf("[hub] broadcast buffer full, dropping %s update for event %s", update.Type, update.EventID)
	}
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *client.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(len(h.clients)))
	}
	log.Printf("[hub] client %s connected (total: %d)", c.ID, len(h.clients))
}

func (h *Hub) unregisterClient(c *client.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		if h.metrics != nil {
			h.metrics.WSClients.Set(float64(len(h.clients)))
		}
		log.Printf("[hub] client %s disconnected (total: %d)", c.ID, len(h.clients))
	}
}

// broadcastUpdate sends an update to every client whose filter matches
func (h *Hub) broadcastUpdate(update models.StreamUpdate) {
	h.clientsMu.RLock()
	clients := make([]*client.Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	message := models.ServerMessage{
		Type:      update.Type,
		Payload:   update.Payload,
		Timestamp: time.Now(),
	}

	for _, c := range clients {
		if !c.MatchesFilter(update) {
			continue
		}

		if c.TrySend(message) {
			if h.metrics != nil {
				h.metrics.WSMessages.Inc()
			}
			continue
		}

		// Buffer full: the client stopped draining, cut it loose
		log.Printf("[hub] client %s buffer full, disconnecting", c.ID)
		go h.Unregister(c)
	}
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	log.Printf("[hub] shutting down (%d active clients)", len(h.clients))
	for c := range h.clients {
		close(c.Send)
		delete(h.clients, c)
	}
	if h.metrics != nil {
		h.metrics.WSClients.Set(0)
	}
}
