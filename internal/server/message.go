package server

import (
	"encoding/json"
	"time"

	"github.com/lox/cardroom/internal/engine"
)

// MessageType identifies a server to client message.
type MessageType string

const (
	MessageTypeFrame       MessageType = "frame"
	MessageTypeNotice      MessageType = "notice"
	MessageTypeUnavailable MessageType = "unavailable"
	MessageTypeError       MessageType = "error"
)

// Message is the envelope of everything the server sends.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	msg := &Message{Type: messageType, Timestamp: time.Now()}
	if data == nil {
		return msg, nil
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	msg.Data = dataBytes
	return msg, nil
}

// ActionData is what clients send: one action in the controller grammar.
type ActionData struct {
	Action string `json:"action"`
}

type NoticeData struct {
	Message string `json:"message"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TableInfo describes a running table in the /tables listing.
type TableInfo struct {
	Name      string            `json:"name"`
	SeatCount int               `json:"seat_count"`
	Users     []string          `json:"users"`
	Game      engine.Descriptor `json:"game"`
}
