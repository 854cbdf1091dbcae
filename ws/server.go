package ws

import (
	"github.com/rs/zerolog"

	"github.com/luciancaetano/arenanet"
	"github.com/luciancaetano/arenanet/internal/transport"
)

type RateLimitConfig = transport.RateLimitConfig
type MessageCallback = arenanet.MessageCallback
type ServerConfig = *transport.Config

// New creates a raw WebSocket server with per-connection rate limiting and
// a single message callback.
//
// The server binds nothing until Start is called. Each New call produces an
// independent instance; multiple servers can run side by side in one
// process (and under test).
//
// Example:
//
//	server := ws.New(ws.NewConfig(9000, ws.DefaultRateLimitConfig(),
//	    func(connID int, payload string) {
//	        if payload == arenanet.DisconnectSentinel {
//	            log.Printf("client %d disconnected", connID)
//	            return
//	        }
//	        server.Broadcast(payload)
//	    }))
func New(cfg ServerConfig) arenanet.Server {
	return transport.New(cfg)
}

// NewConfig builds a server configuration.
//
// Parameters:
//   - port: The TCP listening port. Required.
//   - rateLimit: Rate limiting configuration. Use DefaultRateLimitConfig()
//     or NoRateLimit(). If nil, DefaultRateLimitConfig() is used.
//   - onMessage: Callback invoked once per decoded text message and once
//     with arenanet.DisconnectSentinel when a connection is removed. May be
//     nil for a server that only pushes.
func NewConfig(port int, rateLimit *RateLimitConfig, onMessage MessageCallback) ServerConfig {
	return &transport.Config{
		Port:      port,
		RateLimit: rateLimit,
		OnMessage: onMessage,
	}
}

// WithLogger attaches a zerolog logger to the configuration; without one
// the server logs to stderr.
func WithLogger(cfg ServerConfig, logger zerolog.Logger) ServerConfig {
	cfg.Logger = &logger
	return cfg
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return transport.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return transport.NoRateLimit()
}
