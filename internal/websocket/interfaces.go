package websocket

import (
	"context"
	"time"

	"ipedspulse/pkg/contracts/domain"
	"ipedspulse/pkg/contracts/events"
)

// Connection is the subset of a gorilla connection the pumps use.
// Tests substitute an in-memory implementation.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// SnapshotProvider computes the overview views for one filter.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, f domain.Filter, requestID string) (events.DashboardSnapshot, error)
}
