package config

import "time"

// Application constants
const (
	AppName   = "IPEDS Enrollment Pulse"
	AppVendor = "Institutional Research"

	// Supported survey years
	MinYear = 1980
	MaxYear = 2100

	// Dataset defaults
	DefaultDatasetFile     = "data/ipeds_enrollment_wide.csv"
	DefaultPctSumTolerance = 1.0
	DefaultMinEnrolled     = 100

	// Rate limiting
	DefaultRateLimitRPS   = 50
	DefaultRateLimitBurst = 100

	// Timeouts
	DefaultRequestTimeout = 30 * time.Second
	WebSocketPingPeriod   = 30 * time.Second
	WebSocketPongWait     = 60 * time.Second

	// WebSocket buffer sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 4096
	WebSocketMaxMessageSize  = 8192

	// File paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultExportsDir = "data/exports"
	DefaultLogsDir    = "logs"

	DefaultLogLevel = "info"

	// API endpoints
	APIBasePath       = "/api"
	HealthEndpoint    = "/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
