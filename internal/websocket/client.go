package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ipedspulse/internal/infrastructure"
	"ipedspulse/internal/services"
	"ipedspulse/pkg/contracts/events"
)

// Error codes sent in error messages.
const (
	CodeInvalidMessage      = "INVALID_MESSAGE"
	CodeUnknownType         = "UNKNOWN_TYPE"
	CodeNoData              = "NO_DATA"
	CodeInvalidFilter       = "INVALID_PARAMETER"
	CodeInstitutionNotFound = "INSTITUTION_NOT_FOUND"
	CodeTimeout             = "TIMEOUT"
	CodeInternal            = "INTERNAL_ERROR"
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send chan []byte
	// Closed when the hub drops the client
	done      chan struct{}
	closeOnce sync.Once

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
	logger      *slog.Logger
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn Connection, traceID string) *Client {
	id := uuid.New().String()
	logger := hub.logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// ID returns the client identifier announced in the connect message.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump reads client messages until the connection fails. Queries are
// answered in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	limits := c.hub.limits
	c.conn.SetReadLimit(limits.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(limits.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(limits.pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(c.context(), "unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		c.hub.stats.received()
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	ctx := c.context()

	var msg events.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.hub.metrics.RecordWebSocketMessage(ctx, "in", "invalid")
		c.sendError(CodeInvalidMessage, "message is not valid JSON", "")
		return
	}
	c.hub.metrics.RecordWebSocketMessage(ctx, "in", string(msg.Type))

	switch msg.Type {
	case events.MessageTypePing:
		c.enqueue(events.NewMessage(events.MessageTypePong, nil))

	case events.MessageTypeQuery:
		c.query(ctx, msg)

	default:
		c.sendError(CodeUnknownType, "unsupported message type "+string(msg.Type), msg.RequestID)
	}
}

func (c *Client) query(ctx context.Context, msg events.ClientMessage) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	snapshot, err := c.hub.provider.Snapshot(ctx, msg.Filter.Normalize(), msg.RequestID)
	if err != nil {
		c.hub.stats.queryFailed()
		code := errorCode(err)
		level := slog.LevelDebug
		if code == CodeInternal || code == CodeTimeout {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "snapshot query failed",
			slog.String("request_id", msg.RequestID),
			slog.String("filter", msg.Filter.Key()),
			slog.String("error", err.Error()),
		)
		detail := err.Error()
		if code == CodeInternal {
			detail = "snapshot could not be computed"
		}
		c.sendError(code, detail, msg.RequestID)
		return
	}

	c.logger.DebugContext(ctx, "snapshot computed",
		slog.String("request_id", msg.RequestID),
		slog.Duration("duration", time.Since(start)),
	)
	c.enqueue(events.NewMessage(events.MessageTypeSnapshot, snapshot))
}

func (c *Client) sendError(code, message, requestID string) {
	c.enqueue(events.NewMessage(events.MessageTypeError, events.ErrorData{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}))
}

// enqueue queues msg for the write pump. A full queue drops the message
// rather than blocking the reader.
func (c *Client) enqueue(msg events.WebSocketMessage) bool {
	msg.TraceID = c.traceID
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message",
			slog.String("type", string(msg.Type)),
			slog.String("error", err.Error()),
		)
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		c.hub.metrics.RecordWebSocketMessage(c.context(), "out", string(msg.Type))
		return true
	case <-c.done:
		return false
	default:
		c.hub.stats.droppedMessage()
		c.logger.Warn("client send buffer full, message dropped",
			slog.String("type", string(msg.Type)),
		)
		return false
	}
}

// WritePump writes queued messages and keeps the connection alive with
// pings. It sends a close frame once the hub drops the client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.limits.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", slog.String("error", err.Error()))
				return
			}
			c.hub.stats.sent(len(msg))

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", slog.String("error", err.Error()))
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// errorCode maps a snapshot failure to the code sent to the client.
func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrNoData):
		return CodeNoData
	case errors.Is(err, services.ErrInstitutionNotFound):
		return CodeInstitutionNotFound
	case errors.Is(err, services.ErrInvalidFilter):
		return CodeInvalidFilter
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeInternal
	}
}
