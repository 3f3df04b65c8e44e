// Package events contains the message contracts of the live dashboard WebSocket channel.
package events

import (
	"time"

	"ipedspulse/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Client to server
	MessageTypeQuery MessageType = "query"
	MessageTypePing  MessageType = "ping"

	// Server to client
	MessageTypeConnected MessageType = "connect"
	MessageTypeSnapshot  MessageType = "dashboard:snapshot"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete server message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ClientMessage is sent by dashboard clients. RequestID is echoed back so the
// client can match a snapshot to the query that produced it.
type ClientMessage struct {
	Type      MessageType   `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	Filter    domain.Filter `json:"filter"`
}

// DashboardSnapshot is everything the overview page needs for one filter.
type DashboardSnapshot struct {
	RequestID   string             `json:"request_id,omitempty"`
	Filter      domain.Filter      `json:"filter"`
	Fingerprint string             `json:"fingerprint"`
	Summary     domain.Summary     `json:"summary"`
	Funnel      domain.Funnel      `json:"funnel"`
	Trends      []domain.YearTrend `json:"trends"`
}

// ErrorData is the payload of an error message
type ErrorData struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// NewMessage builds a server message stamped with the current time.
func NewMessage(t MessageType, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{Type: t, Timestamp: time.Now().UTC()},
		Data:        data,
	}
}
