package rosbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Op identifies a rosbridge operation.
type Op string

const (
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
	OpAdvertise   Op = "advertise"
	OpUnadvertise Op = "unadvertise"
	OpPublish     Op = "publish"
	OpStatus      Op = "status"
)

// Sentinel errors.
var (
	// ErrNotConnected is returned when the websocket is not open.
	ErrNotConnected = errors.New("rosbridge: not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("rosbridge: client closed")
)

// Message is the rosbridge envelope. Only the fields relevant to the op are set.
type Message struct {
	Op           Op              `json:"op"`
	ID           string          `json:"id,omitempty"`
	Topic        string          `json:"topic,omitempty"`
	Type         string          `json:"type,omitempty"`
	Msg          json.RawMessage `json:"msg,omitempty"`
	ThrottleRate int             `json:"throttle_rate,omitempty"` // milliseconds
	QueueLength  int             `json:"queue_length,omitempty"`
	Level        string          `json:"level,omitempty"`
}

// NewPublish builds a publish op carrying msg.
func NewPublish(topic string, msg any) (*Message, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message for %s: %w", topic, err)
	}
	return &Message{Op: OpPublish, Topic: topic, Msg: raw}, nil
}

// NewSubscribe builds a subscribe op.
func NewSubscribe(id, topic, msgType string, throttle time.Duration) *Message {
	return &Message{
		Op:           OpSubscribe,
		ID:           id,
		Topic:        topic,
		Type:         msgType,
		ThrottleRate: int(throttle / time.Millisecond),
	}
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a rosbridge envelope.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Op == "" {
		return nil, fmt.Errorf("failed to parse message: missing op")
	}
	return &msg, nil
}

// StatusText returns the human readable text of a status op.
func (m *Message) StatusText() string {
	var text string
	if err := json.Unmarshal(m.Msg, &text); err != nil {
		return string(m.Msg)
	}
	return text
}

// StatusError is a status op reported by the bridge at level "error".
type StatusError struct {
	ID      string
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("rosbridge [%s]: %s", e.ID, e.Message)
	}
	return fmt.Sprintf("rosbridge: %s", e.Message)
}
