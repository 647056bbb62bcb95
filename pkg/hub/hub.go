package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	register   chan *Client
	unregister chan *Client

	// Guards clients for ClientCount
	mu sync.RWMutex

	running atomic.Bool

	// Latest message, replayed to new clients when set
	latest   *Message
	latestMu sync.Mutex
	replay   bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration

	sent      atomic.Int64
	dropped   atomic.Int64
	coalesced atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithReplay makes the hub send the most recent broadcast to every client
// as it connects, so a new viewer sees the current scene immediately.
func WithReplay() Option {
	return func(h *Hub) { h.replay = true }
}

// WithKeepalive sets how often viewers are pinged and how long a viewer may
// stay silent before it is dropped. pingPeriod must be below pongWait.
func WithKeepalive(pingPeriod, pongWait time.Duration) Option {
	return func(h *Hub) {
		if pingPeriod > 0 && pongWait > pingPeriod {
			h.pingPeriod, h.pongWait = pingPeriod, pongWait
		}
	}
}

// New creates a new Hub
func New(name string, logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		name:       name,
		logger:     logger.With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		writeWait:  DefaultWriteWait,
		pongWait:   DefaultPongWait,
		pingPeriod: DefaultPingPeriod,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run fans messages out to clients until ctx is done.
// This should be called in a goroutine
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			if msg, ok := h.lastMessage(); ok {
				client.send <- msg
			}
			h.logger.Info("viewer connected", "client", client.ID, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("viewer disconnected", "client", client.ID, "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.sent.Add(1)
				default:
					// Client's buffer is full - they're too slow
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow viewer", "client", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) lastMessage() (Message, bool) {
	h.latestMu.Lock()
	defer h.latestMu.Unlock()
	if h.latest == nil {
		return Message{}, false
	}
	return *h.latest, true
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	if h.replay {
		h.latestMu.Lock()
		h.latest = &msg
		h.latestMu.Unlock()
	}

	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastText broadcasts a text frame, such as an SVG document
func (h *Hub) BroadcastText(data []byte) {
	h.Broadcast(NewTextMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats returns hub statistics.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:   h.ClientCount(),
		Sent:      h.sent.Load(),
		Dropped:   h.dropped.Load(),
		Coalesced: h.coalesced.Load(),
	}
}

// Stats contains hub statistics.
type Stats struct {
	Clients   int   `json:"clients"`
	Sent      int64 `json:"sent"`
	Dropped   int64 `json:"dropped"`
	Coalesced int64 `json:"coalesced"`
}
