package arenanet

import "context"

// MessageCallback is invoked once for every decoded text message received
// from a client, and once with the DisconnectSentinel payload when a
// connection is removed for any reason (orderly close, I/O error, forced
// disconnect, or server shutdown).
//
// The callback runs on the server's dispatcher goroutine, never on the
// reactor loop itself. Messages from a single connection are delivered in
// receipt order; there is no ordering guarantee across connections. The
// callback should return promptly — a callback that blocks for long periods
// will eventually back-pressure the reactor.
//
// The transport has no notion of player identity. Mapping connection ids to
// players, sessions or accounts is the embedding layer's responsibility.
type MessageCallback = func(connID int, payload string)

// Server defines the interface for the raw WebSocket transport.
//
// The server speaks RFC 6455 directly over TCP: it performs the HTTP Upgrade
// handshake, frames and deframes messages, and multiplexes all connections
// on a single non-blocking reactor loop. Only unfragmented text frames are
// supported in either direction; binary, fragmented and control frames from
// clients are ignored by design.
//
// Example usage:
//
//	import "github.com/luciancaetano/arenanet/ws"
//
//	server := ws.New(ws.NewConfig(9000, ws.DefaultRateLimitConfig(),
//	    func(connID int, payload string) {
//	        if payload == arenanet.DisconnectSentinel {
//	            // connection gone
//	            return
//	        }
//	        // handle game message
//	    }))
//
//	server.Start(ctx)
type Server interface {
	// Start creates the listening socket, binds it to the configured port
	// and launches the reactor loop on its own goroutine.
	//
	// Returns an error if the server is already running or if any step of
	// the socket setup fails. A failed Start releases everything it created;
	// no partially-initialized server is left behind.
	Start(ctx context.Context) error

	// Stop shuts the server down with bounded latency. It closes the
	// listening socket, force-closes every registered connection after a
	// best-effort close frame, and waits a bounded grace period for the
	// reactor to exit. Stop never hangs on a contended lock or a stuck
	// connection; when cleanup cannot complete in time it degrades and logs
	// a warning instead of blocking.
	Stop(ctx context.Context) error

	// Send delivers a text message to a single connection. Unknown ids are
	// a silent no-op. Concurrent sends are serialized by the registry lock
	// in lock-acquisition order.
	Send(connID int, text string)

	// Broadcast delivers a text message to every registered connection.
	Broadcast(text string)

	// BroadcastExcept delivers a text message to every registered
	// connection except the given one.
	BroadcastExcept(connID int, text string)

	// Disconnect force-closes a connection and fires the DisconnectSentinel
	// callback. Unknown ids are a silent no-op.
	Disconnect(connID int)

	// ConnectedCount returns the number of registered connections.
	ConnectedCount() int
}
