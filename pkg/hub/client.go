package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Keepalive defaults. The ping period must stay below the pong wait.
const (
	DefaultWriteWait  = 10 * time.Second
	DefaultPongWait   = 60 * time.Second
	DefaultPingPeriod = (DefaultPongWait * 9) / 10

	// Viewers only send pongs and close frames
	maxMessageSize = 4 * 1024

	sendBuffer = 256
)

// Client is one viewer connection
type Client struct {
	ID        string
	Connected time.Time

	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient creates a client for conn and registers it with the hub
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := newClient(hub)
	client.conn = conn
	hub.register <- client
	return client
}

func newClient(hub *Hub) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Connected: time.Now(),
		hub:       hub,
		send:      make(chan Message, sendBuffer),
	}
}

// Run pumps messages to the viewer and blocks until it disconnects
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump only detects disconnection and refreshes the read deadline on pongs
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	pongWait := c.hub.pongWait
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.hub.logger.Debug("viewer read ended", "client", c.ID, "error", err)
			return
		}
	}
}

// writePump is the only writer on the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.closeFrame()
				return
			}
			batch, open := c.drain(msg)
			for _, m := range batch {
				c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
				if err := c.conn.WriteMessage(m.wsType(), m.Data); err != nil {
					return
				}
			}
			if !open {
				c.closeFrame()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain collects what is already queued behind first and collapses runs of
// text frames to their newest, so a viewer that fell behind jumps straight
// to the current scene. JSON and binary messages are always delivered, in
// order. open is false when the hub closed the channel.
func (c *Client) drain(first Message) (batch []Message, open bool) {
	batch = append(batch, first)
	for {
		select {
		case next, ok := <-c.send:
			if !ok {
				return batch, false
			}
			if n := len(batch); n > 0 && batch[n-1].Type == TextMessage && next.Type == TextMessage {
				batch[n-1] = next
				c.hub.coalesced.Add(1)
				continue
			}
			batch = append(batch, next)
		default:
			return batch, true
		}
	}
}

// closeFrame tells the viewer the hub closed its channel
func (c *Client) closeFrame() {
	c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
