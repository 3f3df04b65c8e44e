package websocket

import (
	"sync/atomic"
	"time"
)

// Stats counts hub activity since start. The OpenTelemetry instruments in
// infrastructure.BusinessMetrics carry the same events to exporters; Stats
// backs the periodic hub log line and tests.
type Stats struct {
	totalConnections  atomic.Int64
	activeConnections atomic.Int64
	maxConcurrent     atomic.Int64
	messagesIn        atomic.Int64
	messagesOut       atomic.Int64
	bytesOut          atomic.Int64
	dropped           atomic.Int64
	queryErrors       atomic.Int64
	startedAt         time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	TotalConnections  int64         `json:"total_connections"`
	ActiveConnections int64         `json:"active_connections"`
	MaxConcurrent     int64         `json:"max_concurrent"`
	MessagesIn        int64         `json:"messages_in"`
	MessagesOut       int64         `json:"messages_out"`
	BytesOut          int64         `json:"bytes_out"`
	Dropped           int64         `json:"dropped"`
	QueryErrors       int64         `json:"query_errors"`
	Uptime            time.Duration `json:"uptime"`
}

func newStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) connected() {
	s.totalConnections.Add(1)
	active := s.activeConnections.Add(1)
	for {
		peak := s.maxConcurrent.Load()
		if active <= peak || s.maxConcurrent.CompareAndSwap(peak, active) {
			return
		}
	}
}

func (s *Stats) disconnected() {
	s.activeConnections.Add(-1)
}

func (s *Stats) received() {
	s.messagesIn.Add(1)
}

func (s *Stats) sent(size int) {
	s.messagesOut.Add(1)
	s.bytesOut.Add(int64(size))
}

func (s *Stats) droppedMessage() {
	s.dropped.Add(1)
}

func (s *Stats) queryFailed() {
	s.queryErrors.Add(1)
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalConnections:  s.totalConnections.Load(),
		ActiveConnections: s.activeConnections.Load(),
		MaxConcurrent:     s.maxConcurrent.Load(),
		MessagesIn:        s.messagesIn.Load(),
		MessagesOut:       s.messagesOut.Load(),
		BytesOut:          s.bytesOut.Load(),
		Dropped:           s.dropped.Load(),
		QueryErrors:       s.queryErrors.Load(),
		Uptime:            time.Since(s.startedAt),
	}
}
