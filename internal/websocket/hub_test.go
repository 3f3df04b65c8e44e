package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ipedspulse/internal/config"
	"ipedspulse/internal/services"
	"ipedspulse/internal/shared/testutil"
	"ipedspulse/pkg/contracts/domain"
	"ipedspulse/pkg/contracts/events"
)

type fakeProvider struct {
	mu      sync.Mutex
	filters []domain.Filter
	block   chan struct{}
}

func (p *fakeProvider) Snapshot(ctx context.Context, f domain.Filter, requestID string) (events.DashboardSnapshot, error) {
	p.mu.Lock()
	p.filters = append(p.filters, f)
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return events.DashboardSnapshot{}, ctx.Err()
		}
	}
	for _, name := range f.Institutions {
		if name == "Nowhere" {
			return events.DashboardSnapshot{}, fmt.Errorf("summary: %w", services.ErrNoData)
		}
	}
	return events.DashboardSnapshot{
		RequestID:   requestID,
		Filter:      f,
		Fingerprint: "fp-1",
		Summary:     domain.Summary{TotalApplicants: 4500, InstitutionCount: 3},
	}, nil
}

type serverMessage struct {
	Type    events.MessageType `json:"type"`
	TraceID string             `json:"trace_id"`
	Data    json.RawMessage    `json:"data"`
}

func startHub(t *testing.T, provider SnapshotProvider) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(provider, config.Default().WebSocket, testutil.DiscardLogger())
	hub.Start()
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg serverMessage
	require.NoError(t, json.Unmarshal(data, &msg), string(data))
	return msg
}

func TestHub_ConnectAndQuery(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	provider := &fakeProvider{}
	hub := NewHub(provider, config.Default().WebSocket, testutil.DiscardLogger())
	hub.Start()
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Stop()

	conn := dial(t, server)
	defer conn.Close()

	connected := readMessage(t, conn)
	assert.Equal(t, events.MessageTypeConnected, connected.Type)
	var hello map[string]string
	require.NoError(t, json.Unmarshal(connected.Data, &hello))
	assert.Equal(t, "connected", hello["status"])
	assert.NotEmpty(t, hello["client_id"])
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.WriteJSON(events.ClientMessage{
		Type:      events.MessageTypeQuery,
		RequestID: "req-7",
		Filter:    domain.Filter{Years: []int{2023, 2022, 2023}, States: []string{"CA"}},
	}))
	reply := readMessage(t, conn)
	require.Equal(t, events.MessageTypeSnapshot, reply.Type)
	var snap events.DashboardSnapshot
	require.NoError(t, json.Unmarshal(reply.Data, &snap))
	assert.Equal(t, "req-7", snap.RequestID)
	assert.Equal(t, int64(4500), snap.Summary.TotalApplicants)
	assert.Equal(t, []int{2022, 2023}, snap.Filter.Years, "filter is normalized before the query")

	require.NoError(t, conn.WriteJSON(events.ClientMessage{Type: events.MessageTypePing}))
	assert.Equal(t, events.MessageTypePong, readMessage(t, conn).Type)

	stats := hub.Stats()
	assert.Equal(t, int64(1), stats.ActiveConnections)
	assert.Equal(t, int64(2), stats.MessagesIn)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ErrorReplies(t *testing.T) {
	_, server := startHub(t, &fakeProvider{})
	conn := dial(t, server)
	defer conn.Close()
	readMessage(t, conn)

	tests := []struct {
		name          string
		payload       string
		wantCode      string
		wantRequestID string
	}{
		{name: "malformed json", payload: `{"type":`, wantCode: CodeInvalidMessage},
		{name: "unknown type", payload: `{"type":"subscribe","request_id":"r1"}`, wantCode: CodeUnknownType, wantRequestID: "r1"},
		{name: "empty selection", payload: `{"type":"query","request_id":"r2","filter":{"institutions":["Nowhere"]}}`, wantCode: CodeNoData, wantRequestID: "r2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			msg := readMessage(t, conn)
			require.Equal(t, events.MessageTypeError, msg.Type)
			var data events.ErrorData
			require.NoError(t, json.Unmarshal(msg.Data, &data))
			assert.Equal(t, tt.wantCode, data.Code)
			assert.Equal(t, tt.wantRequestID, data.RequestID)
		})
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(&fakeProvider{}, config.Default().WebSocket, testutil.DiscardLogger())
	hub.Start()
	server := httptest.NewServer(hub)
	defer server.Close()

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, server)
		defer conns[i].Close()
		readMessage(t, conns[i])
	}
	assert.Equal(t, 3, hub.ClientCount())

	hub.Stop()
	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	for _, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err := conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	}
	assert.Equal(t, int64(3), hub.Stats().TotalConnections)
	assert.Equal(t, int64(0), hub.Stats().ActiveConnections)
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub := NewHub(&fakeProvider{}, config.Default().WebSocket, testutil.DiscardLogger())
	hub.Start()
	hub.Stop()

	c := NewClient(hub, newFakeConn(), "")
	assert.False(t, hub.Register(c))
	hub.Unregister(c)
}

func TestHub_ServeHTTPAfterStop(t *testing.T) {
	hub := NewHub(&fakeProvider{}, config.Default().WebSocket, testutil.DiscardLogger())
	hub.Start()
	hub.Stop()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			ErrorCode string `json:"error_code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.ErrorCode)
	assert.Zero(t, hub.ClientCount())
}

func TestHub_OriginChecker(t *testing.T) {
	hub := NewHub(&fakeProvider{}, config.Default().WebSocket, testutil.DiscardLogger(),
		WithOriginChecker(func(r *http.Request) bool { return r.Header.Get("Origin") == "http://allowed.example" }))
	hub.Start()
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://allowed.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestLimitsFrom(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.WebSocketConfig
		want connLimits
	}{
		{
			name: "defaults for zero config",
			want: connLimits{pongWait: config.WebSocketPongWait, pingPeriod: config.WebSocketPongWait * 9 / 10, maxMessageSize: config.WebSocketMaxMessageSize},
		},
		{
			name: "ping period not below pong wait",
			cfg:  config.WebSocketConfig{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second, MaxMessageSize: 1024},
			want: connLimits{pongWait: 10 * time.Second, pingPeriod: 9 * time.Second, maxMessageSize: 1024},
		},
		{
			name: "explicit values kept",
			cfg:  config.WebSocketConfig{PongWait: 10 * time.Second, PingPeriod: 5 * time.Second, MaxMessageSize: 2048},
			want: connLimits{pongWait: 10 * time.Second, pingPeriod: 5 * time.Second, maxMessageSize: 2048},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, limitsFrom(tt.cfg))
		})
	}
}
