package gesture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler applies pointer events. Coordinates are screen pixels.
type Handler interface {
	PointerDown(ctx context.Context, x, y float64) error
	PointerMove(ctx context.Context, x, y float64) error
	PointerUp(ctx context.Context) (*Goal, error)
	PointerCancel(ctx context.Context) error
}

// Session is one connected gesture client
type Session struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a reply to the session
func (s *Session) Send(r *Reply) error {
	data, err := r.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages gesture sessions
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	handler  Handler
	logger   *slog.Logger

	// Stats
	eventsReceived atomic.Uint64
	repliesSent    atomic.Uint64
	eventErrors    atomic.Uint64
}

// NewHub creates a gesture hub that forwards events to handler
func NewHub(handler Handler, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[string]*Session),
		handler:  handler,
		logger:   logger.With("component", "gesture"),
	}
}

// RegisterRoutes registers the gesture endpoint. The caller is expected to
// reject non-upgrade requests under /ws.
func (h *Hub) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/gestures", websocket.New(h.handleSession))
}

func (h *Hub) handleSession(c *websocket.Conn) {
	session := &Session{
		ID:        uuid.NewString(),
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.sessions[session.ID] = session
	count := len(h.sessions)
	h.mu.Unlock()
	h.logger.Info("gesture session opened", "session", session.ID, "sessions", count)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.mu.Lock()
		delete(h.sessions, session.ID)
		count := len(h.sessions)
		h.mu.Unlock()
		h.logger.Info("gesture session closed", "session", session.ID, "sessions", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("gesture read ended", "session", session.ID, "error", err)
			return
		}

		session.mu.Lock()
		session.LastSeen = time.Now()
		session.mu.Unlock()
		h.eventsReceived.Add(1)

		reply := h.handleMessage(ctx, data)
		if err := session.Send(reply); err != nil {
			h.logger.Warn("gesture write failed", "session", session.ID, "error", err)
			return
		}
		h.repliesSent.Add(1)
	}
}

// handleMessage applies one raw event and builds the reply
func (h *Hub) handleMessage(ctx context.Context, data []byte) *Reply {
	ev, err := ParseEvent(data)
	if err != nil {
		h.eventErrors.Add(1)
		return NewErrorReply("", err)
	}
	return h.HandleEvent(ctx, ev)
}

// HandleEvent applies ev and returns the reply for it
func (h *Hub) HandleEvent(ctx context.Context, ev *Event) *Reply {
	var (
		goal *Goal
		err  error
	)

	switch ev.Type {
	case EventPing:
		return NewReply(ReplyPong)
	case EventDown:
		err = h.handler.PointerDown(ctx, ev.X, ev.Y)
	case EventMove:
		err = h.handler.PointerMove(ctx, ev.X, ev.Y)
	case EventUp:
		goal, err = h.handler.PointerUp(ctx)
	case EventCancel:
		err = h.handler.PointerCancel(ctx)
	}

	if err != nil {
		h.eventErrors.Add(1)
		return NewErrorReply(ev.Type, err)
	}
	if goal != nil {
		r := NewReply(ReplyGoal)
		r.Event = ev.Type
		r.Goal = goal
		return r
	}
	r := NewReply(ReplyAck)
	r.Event = ev.Type
	return r
}

// Broadcast sends a reply to every session, e.g. a goal result
func (h *Hub) Broadcast(r *Reply) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.Send(r); err != nil {
			h.logger.Warn("gesture broadcast failed", "session", s.ID, "error", err)
			continue
		}
		h.repliesSent.Add(1)
	}
}

// NotifyResult tells every session that a goal resolved
func (h *Hub) NotifyResult(goal Goal) {
	r := NewReply(ReplyResult)
	r.Goal = &goal
	h.Broadcast(r)
}

// SessionCount returns the number of open sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SessionInfo contains info about an open session
type SessionInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// SessionInfos returns info about all open sessions
func (h *Hub) SessionInfos() []SessionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		s.mu.Lock()
		infos = append(infos, SessionInfo{ID: s.ID, Connected: s.Connected, LastSeen: s.LastSeen})
		s.mu.Unlock()
	}
	return infos
}

// Stats contains hub statistics
type Stats struct {
	Sessions       int    `json:"sessions"`
	EventsReceived uint64 `json:"events_received"`
	RepliesSent    uint64 `json:"replies_sent"`
	EventErrors    uint64 `json:"event_errors"`
}

// Stats returns hub statistics
func (h *Hub) Stats() Stats {
	return Stats{
		Sessions:       h.SessionCount(),
		EventsReceived: h.eventsReceived.Load(),
		RepliesSent:    h.repliesSent.Load(),
		EventErrors:    h.eventErrors.Load(),
	}
}
