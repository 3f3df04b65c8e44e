package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ipedspulse/internal/config"
	apierrors "ipedspulse/internal/errors"
	"ipedspulse/internal/infrastructure"
	"ipedspulse/pkg/contracts/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Upper bound for computing one snapshot
	queryTimeout = 15 * time.Second

	// Outbound messages buffered per client before new ones are dropped
	sendBuffer = 64

	statsInterval = 30 * time.Second
)

// Hub tracks the live dashboard clients. Each client asks for snapshots of
// its own filter; nothing is broadcast.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	provider SnapshotProvider
	upgrader websocket.Upgrader
	limits   connLimits
	metrics  *infrastructure.BusinessMetrics
	stats    *Stats
	logger   *slog.Logger

	quit    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// connLimits are the per-connection timings derived from configuration.
type connLimits struct {
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithMetrics records connections and messages on m.
func WithMetrics(m *infrastructure.BusinessMetrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithOriginChecker replaces the same-origin upgrade check.
func WithOriginChecker(check func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = check }
}

// NewHub creates a hub answering queries from provider.
func NewHub(provider SnapshotProvider, cfg config.WebSocketConfig, logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		provider:   provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
		},
		limits: limitsFrom(cfg),
		stats:  newStats(),
		logger: logger.With(slog.String("component", "websocket.hub")),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func limitsFrom(cfg config.WebSocketConfig) connLimits {
	l := connLimits{
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod,
		maxMessageSize: cfg.MaxMessageSize,
	}
	if l.pongWait <= 0 {
		l.pongWait = config.WebSocketPongWait
	}
	// pings must arrive before the peer's read deadline
	if l.pingPeriod <= 0 || l.pingPeriod >= l.pongWait {
		l.pingPeriod = l.pongWait * 9 / 10
	}
	if l.maxMessageSize <= 0 {
		l.maxMessageSize = config.WebSocketMaxMessageSize
	}
	return l
}

// Start runs the hub loop. Calling Start twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.run()
	}()
	go func() {
		defer h.wg.Done()
		h.reportStats()
	}()
}

// Stop disconnects every client and waits for the hub goroutines.
// A stopped hub cannot be restarted.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.quit)
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
				h.stats.disconnected()
				h.metrics.RecordWebSocketConnection(context.Background(), -1)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			ctx := c.context()
			h.stats.connected()
			h.metrics.RecordWebSocketConnection(ctx, 1)
			h.logger.InfoContext(ctx, "client registered",
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr),
				slog.Int("total_clients", count),
			)
			c.enqueue(events.NewMessage(events.MessageTypeConnected, map[string]string{
				"status":    "connected",
				"client_id": c.id,
			}))

		case c := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[c]
			if ok {
				delete(h.clients, c)
			}
			count := len(h.clients)
			h.mu.Unlock()
			if !ok {
				continue
			}

			c.close()
			ctx := c.context()
			h.stats.disconnected()
			h.metrics.RecordWebSocketConnection(ctx, -1)
			h.logger.InfoContext(ctx, "client unregistered",
				slog.String("client_id", c.id),
				slog.Int("total_clients", count),
				slog.Duration("connection_duration", time.Since(c.connectedAt)),
			)
		}
	}
}

// Register adds a client. It reports false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its outbound queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters.
func (h *Hub) Stats() StatsSnapshot {
	return h.stats.Snapshot()
}

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.quit:
		apierrors.WriteError(w, apierrors.ErrServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	c := NewClient(h, wrapConn(conn), infrastructure.GetTraceID(r.Context()))
	if !h.Register(c) {
		conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}

func (h *Hub) reportStats() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			s := h.stats.Snapshot()
			h.logger.Info("websocket hub stats",
				slog.Int64("active_clients", s.ActiveConnections),
				slog.Int64("total_connections", s.TotalConnections),
				slog.Int64("messages_in", s.MessagesIn),
				slog.Int64("messages_out", s.MessagesOut),
				slog.Int64("dropped", s.Dropped),
				slog.Int64("query_errors", s.QueryErrors),
			)
		}
	}
}
