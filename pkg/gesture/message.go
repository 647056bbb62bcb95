// Package gesture runs pointer-gesture sessions over websockets. A browser
// streams pointer events in screen pixels; each event is handed to a Handler
// that drives goal selection, and the outcome is written back to the session.
package gesture

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies an inbound pointer event.
type EventType string

const (
	EventDown   EventType = "down"   // Start a selection at (x, y)
	EventMove   EventType = "move"   // Orient the selection towards (x, y)
	EventUp     EventType = "up"     // End the selection and send the goal
	EventCancel EventType = "cancel" // Abandon the selection
	EventPing   EventType = "ping"
)

// ReplyType identifies an outbound message.
type ReplyType string

const (
	ReplyAck    ReplyType = "ack"    // Event applied
	ReplyGoal   ReplyType = "goal"   // Goal sent
	ReplyResult ReplyType = "result" // Goal resolved
	ReplyError  ReplyType = "error"
	ReplyPong   ReplyType = "pong"
)

// Event is a pointer event. X and Y are screen pixels.
type Event struct {
	Type      EventType `json:"type"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp int64     `json:"ts,omitempty"` // Unix milliseconds
}

// Goal describes a goal that was sent.
type Goal struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"` // radians
	Status  string  `json:"status,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Reply is written back to the session.
type Reply struct {
	Type      ReplyType `json:"type"`
	Event     EventType `json:"event,omitempty"`
	Goal      *Goal     `json:"goal,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp int64     `json:"ts"`
}

// NewReply creates a reply with the current timestamp
func NewReply(replyType ReplyType) *Reply {
	return &Reply{Type: replyType, Timestamp: time.Now().UnixMilli()}
}

// NewErrorReply creates an error reply for the given event
func NewErrorReply(event EventType, err error) *Reply {
	r := NewReply(ReplyError)
	r.Event = event
	r.Error = err.Error()
	return r
}

// Bytes returns the JSON-encoded reply
func (r *Reply) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// ParseEvent parses a JSON event from bytes
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	switch ev.Type {
	case EventDown, EventMove, EventUp, EventCancel, EventPing:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return &ev, nil
}
