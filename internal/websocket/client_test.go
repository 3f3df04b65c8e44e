package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipedspulse/internal/config"
	"ipedspulse/internal/services"
	"ipedspulse/internal/shared/testutil"
	"ipedspulse/pkg/contracts/events"
)

// fakeConn is an in-memory Connection. Reads block until a message is
// pushed or the connection is closed.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return 1, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) RemoteAddr() string                { return "192.0.2.1:5000" }

func newTestClient(t *testing.T, provider SnapshotProvider) *Client {
	t.Helper()
	hub := NewHub(provider, config.Default().WebSocket, testutil.DiscardLogger())
	return NewClient(hub, newFakeConn(), "trace-123")
}

func drain(t *testing.T, c *Client) events.WebSocketMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg events.WebSocketMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatal("no message queued")
		return events.WebSocketMessage{}
	}
}

func TestClient_HandleQuery(t *testing.T) {
	provider := &fakeProvider{}
	c := newTestClient(t, provider)

	c.handle([]byte(`{"type":"query","request_id":"q1","filter":{"states":["TX","CA","TX"]}}`))

	msg := drain(t, c)
	assert.Equal(t, events.MessageTypeSnapshot, msg.Type)
	assert.Equal(t, "trace-123", msg.TraceID)
	require.Len(t, provider.filters, 1)
	assert.Equal(t, []string{"CA", "TX"}, provider.filters[0].States)
}

func TestClient_CancelledQuery(t *testing.T) {
	provider := &fakeProvider{block: make(chan struct{})}
	c := newTestClient(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.query(ctx, events.ClientMessage{Type: events.MessageTypeQuery, RequestID: "slow"})

	msg := drain(t, c)
	assert.Equal(t, events.MessageTypeError, msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, CodeInternal, data["code"], "a cancelled query is not a deadline")
	assert.Equal(t, "snapshot could not be computed", data["message"])
	assert.Equal(t, int64(1), c.hub.Stats().QueryErrors)
}

func TestClient_EnqueueDropsWhenFull(t *testing.T) {
	c := newTestClient(t, &fakeProvider{})

	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.enqueue(events.NewMessage(events.MessageTypePong, nil)))
	}
	assert.False(t, c.enqueue(events.NewMessage(events.MessageTypePong, nil)))
	assert.Equal(t, int64(1), c.hub.Stats().Dropped)

	c.close()
	c.close()
	assert.False(t, c.enqueue(events.NewMessage(events.MessageTypePong, nil)), "closed client accepts nothing")
}

func TestClient_WritePumpSendsCloseFrame(t *testing.T) {
	c := newTestClient(t, &fakeProvider{})
	conn := c.conn.(*fakeConn)

	require.True(t, c.enqueue(events.NewMessage(events.MessageTypePong, nil)))
	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.written) == 1
	}, time.Second, 5*time.Millisecond)
	c.close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not stop")
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Len(t, conn.written, 2, "message then close frame")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("funnel: %w", services.ErrNoData), CodeNoData},
		{fmt.Errorf("%w: %q", services.ErrInstitutionNotFound, "x"), CodeInstitutionNotFound},
		{fmt.Errorf("%w: year 1990", services.ErrInvalidFilter), CodeInvalidFilter},
		{context.DeadlineExceeded, CodeTimeout},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}
