package rosbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Handler receives the raw "msg" payload of an inbound publish op.
type Handler func(msg json.RawMessage)

// Subscription is an active topic subscription.
type Subscription interface {
	Topic() string
	Unsubscribe() error
}

// Client provides a high-level interface to a rosbridge server.
type Client struct {
	cfg      Config
	logger   *slog.Logger
	dispatch func(func())

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{} // closed when the current read loop exits

	wsMu sync.Mutex // serializes writes to conn

	subs       map[string][]*subscription // by topic
	advertised map[string]string          // topic -> type
	nextID     atomic.Int64

	onStatus func(level, text string)

	// Stats
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	reconnectCount   atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithDispatcher routes every handler invocation through dispatch, e.g. an
// event loop's Post. By default handlers run on the read goroutine.
func WithDispatcher(dispatch func(func())) Option {
	return func(c *Client) {
		if dispatch != nil {
			c.dispatch = dispatch
		}
	}
}

// WithStatusHandler is called for every status op the bridge reports.
func WithStatusHandler(fn func(level, text string)) Option {
	return func(c *Client) { c.onStatus = fn }
}

// New creates a new rosbridge client.
// Call Connect() to establish the session.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:        cfg,
		logger:     logger,
		dispatch:   func(f func()) { f() },
		subs:       make(map[string][]*subscription),
		advertised: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect opens the websocket and replays existing subscriptions and
// advertisements.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil // Already connected
	}
	c.mu.Unlock()

	c.logger.Info("connecting to rosbridge", "url", c.cfg.URL)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to rosbridge: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	done := make(chan struct{})
	c.done = done
	replay := c.replayLocked()
	c.mu.Unlock()

	go c.readLoop(conn, done)

	for _, msg := range replay {
		if err := c.send(msg); err != nil {
			return fmt.Errorf("failed to restore %s on %s: %w", msg.Op, msg.Topic, err)
		}
	}

	c.logger.Info("connected to rosbridge", "url", c.cfg.URL, "restored", len(replay))
	return nil
}

// replayLocked builds the ops needed to restore state on a fresh connection.
func (c *Client) replayLocked() []*Message {
	var out []*Message
	for topic, msgType := range c.advertised {
		out = append(out, &Message{Op: OpAdvertise, ID: c.newID(OpAdvertise, topic), Topic: topic, Type: msgType})
	}
	for _, subs := range c.subs {
		for _, s := range subs {
			out = append(out, NewSubscribe(s.id, s.topic, s.msgType, s.throttle))
		}
	}
	return out
}

// ConnectWithRetry connects with automatic retry on failure.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if err == ErrClosed {
			return err
		}

		attempts++
		c.reconnectCount.Add(1)

		if c.cfg.MaxReconnectAttempts > 0 && attempts >= c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("max reconnect attempts (%d) reached: %w", c.cfg.MaxReconnectAttempts, err)
		}

		c.logger.Warn("rosbridge connection failed, retrying",
			"error", err,
			"attempt", attempts,
			"retry_in", c.cfg.ReconnectInterval,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// Run keeps the connection alive until ctx is done or the client is closed,
// reconnecting whenever the socket drops.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.ConnectWithRetry(ctx); err != nil {
			return err
		}

		c.mu.RLock()
		done := c.done
		c.mu.RUnlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}

		if c.isClosed() {
			return ErrClosed
		}
		c.logger.Warn("rosbridge connection lost, reconnecting")
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// IsConnected returns true if the websocket is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.closed
}

func (c *Client) newID(op Op, topic string) string {
	return fmt.Sprintf("%s:%s:%d", op, topic, c.nextID.Add(1))
}

// send writes one op. Only one goroutine writes at a time.
func (c *Client) send(msg *Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", msg.Op, err)
	}

	c.messagesSent.Add(1)
	return nil
}

// Subscribe subscribes to a topic. The bridge drops messages arriving faster
// than throttle. handler runs through the client's dispatcher.
func (c *Client) Subscribe(topic, msgType string, throttle time.Duration, handler Handler) (Subscription, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("subscribe %s: %w", topic, ErrNotConnected)
	}

	sub := &subscription{
		client:   c,
		id:       c.newID(OpSubscribe, topic),
		topic:    topic,
		msgType:  msgType,
		throttle: throttle,
		handler:  handler,
	}

	c.mu.Lock()
	c.subs[topic] = append(c.subs[topic], sub)
	c.mu.Unlock()

	if err := c.send(NewSubscribe(sub.id, topic, msgType, throttle)); err != nil {
		c.removeSub(sub)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	c.logger.Debug("subscribed to topic", "topic", topic, "type", msgType, "throttle", throttle)
	return sub, nil
}

func (c *Client) removeSub(sub *subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.subs[sub.topic]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(c.subs, sub.topic)
			} else {
				c.subs[sub.topic] = subs
			}
			return true
		}
	}
	return false
}

// Advertise announces that this client publishes msgType on topic.
// Advertising the same topic twice is a no-op.
func (c *Client) Advertise(topic, msgType string) error {
	c.mu.Lock()
	if existing, ok := c.advertised[topic]; ok {
		c.mu.Unlock()
		if existing != msgType {
			return fmt.Errorf("topic %s already advertised as %s", topic, existing)
		}
		return nil
	}
	c.advertised[topic] = msgType
	c.mu.Unlock()

	err := c.send(&Message{Op: OpAdvertise, ID: c.newID(OpAdvertise, topic), Topic: topic, Type: msgType})
	if err != nil {
		c.mu.Lock()
		delete(c.advertised, topic)
		c.mu.Unlock()
		return fmt.Errorf("failed to advertise %s: %w", topic, err)
	}
	return nil
}

// Unadvertise withdraws an advertisement.
func (c *Client) Unadvertise(topic string) error {
	c.mu.Lock()
	_, ok := c.advertised[topic]
	delete(c.advertised, topic)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return c.send(&Message{Op: OpUnadvertise, ID: c.newID(OpUnadvertise, topic), Topic: topic})
}

// Publish sends msg on topic.
func (c *Client) Publish(topic string, msg any) error {
	op, err := NewPublish(topic, msg)
	if err != nil {
		return err
	}
	if err := c.send(op); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		close(done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warn("rosbridge read failed", "error", err)
			}
			return
		}

		msg, err := ParseMessage(data)
		if err != nil {
			c.logger.Debug("dropping malformed rosbridge frame", "error", err)
			continue
		}
		c.messagesReceived.Add(1)
		c.handle(msg)
	}
}

func (c *Client) handle(msg *Message) {
	switch msg.Op {
	case OpPublish:
		c.mu.RLock()
		subs := append([]*subscription(nil), c.subs[msg.Topic]...)
		c.mu.RUnlock()

		for _, s := range subs {
			handler, payload := s.handler, msg.Msg
			c.dispatch(func() { handler(payload) })
		}

	case OpStatus:
		text := msg.StatusText()
		switch msg.Level {
		case "error":
			c.logger.Error("rosbridge status", "error", &StatusError{ID: msg.ID, Message: text})
		case "warning":
			c.logger.Warn("rosbridge status", "id", msg.ID, "msg", text)
		default:
			c.logger.Debug("rosbridge status", "level", msg.Level, "id", msg.ID, "msg", text)
		}
		if c.onStatus != nil {
			level := msg.Level
			c.dispatch(func() { c.onStatus(level, text) })
		}

	default:
		c.logger.Debug("ignoring rosbridge op", "op", msg.Op)
	}
}

// Close closes the websocket and releases resources.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	done := c.done
	c.mu.Unlock()

	if conn == nil {
		c.logger.Info("rosbridge client closed")
		return nil
	}

	c.wsMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wsMu.Unlock()
	if err != nil {
		c.logger.Debug("error sending close frame", "error", err)
	}

	conn.Close()
	if done != nil {
		<-done
	}

	c.logger.Info("rosbridge client closed")
	return nil
}

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	c.mu.RLock()
	connected := c.conn != nil && !c.closed
	subscriptions := 0
	for _, s := range c.subs {
		subscriptions += len(s)
	}
	c.mu.RUnlock()

	return ClientStats{
		Connected:        connected,
		Subscriptions:    subscriptions,
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		ReconnectCount:   c.reconnectCount.Load(),
	}
}

// ClientStats contains client statistics.
type ClientStats struct {
	Connected        bool  `json:"connected"`
	Subscriptions    int   `json:"subscriptions"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	ReconnectCount   int64 `json:"reconnect_count"`
}

type subscription struct {
	client   *Client
	id       string
	topic    string
	msgType  string
	throttle time.Duration
	handler  Handler
}

func (s *subscription) Topic() string { return s.topic }

// Unsubscribe removes the handler and tells the bridge. Calling it twice is a no-op.
func (s *subscription) Unsubscribe() error {
	if !s.client.removeSub(s) {
		return nil
	}
	err := s.client.send(&Message{Op: OpUnsubscribe, ID: s.id, Topic: s.topic})
	if err == ErrNotConnected {
		return nil
	}
	return err
}
