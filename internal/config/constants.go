package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Websocket keepalive settings. PingPeriod must be shorter than PongWait or
// the read deadline fires before the next ping goes out.
const (
	WSPongWait   = 60 * time.Second
	WSPingPeriod = 30 * time.Second
	WSWriteWait  = 10 * time.Second
	WSReadLimit  = 512
)

// Background job intervals
const (
	CleanupJobInterval = 2 * time.Hour
)
