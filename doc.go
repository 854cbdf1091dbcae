// Package arenanet provides a from-scratch WebSocket transport for game
// servers and other real-time applications.
//
// Unlike wrapper libraries, arenanet implements RFC 6455 directly over raw
// TCP sockets: the HTTP Upgrade handshake, the binary frame codec and the
// connection multiplexing are all its own. All connections are served by a
// single non-blocking reactor loop, which keeps the number of OS-level
// waiting primitives bounded and centralizes every registry mutation point.
//
// # Architecture
//
// Five components, leaf to root:
//
//   - Frame codec: encodes and decodes unfragmented WebSocket text frames.
//   - Handshake negotiator: validates the HTTP Upgrade request and computes
//     the protocol-mandated accept key.
//   - Connection registry: thread-safe store of live connections keyed by a
//     monotonically increasing connection id.
//   - Reactor: one non-blocking loop that accepts new connections and polls
//     existing ones for readability with short timeouts.
//   - Lifecycle controller: start/stop sequencing with a bounded-timeout,
//     best-effort forced shutdown.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/arenanet"
//	    "github.com/luciancaetano/arenanet/ws"
//	)
//
//	server := ws.New(ws.NewConfig(9000, ws.DefaultRateLimitConfig(),
//	    func(connID int, payload string) {
//	        if payload == arenanet.DisconnectSentinel {
//	            log.Printf("client %d gone", connID)
//	            return
//	        }
//	        server.Broadcast(payload)
//	    }))
//
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Wire Protocol
//
// Only single, unfragmented text frames are supported in either direction.
// Fragmented, binary and control frames received from clients are dropped
// without closing the connection — the codec treats anything it does not
// support as "no message". Server-to-client frames are never masked;
// client-to-server frames are unmasked with the standard cyclic XOR.
//
// # Callback Contract
//
// The configured MessageCallback receives every decoded text message as
// (connID, payload), plus one (connID, "DISCONNECT") event when a connection
// is removed for any reason. Callbacks run on a dedicated dispatcher
// goroutine, in receipt order per connection.
//
// # Rate Limiting
//
// Each connection carries an independent token-bucket limiter for inbound
// messages. A client that exceeds the limit is force-disconnected:
//
//	// Default: 100 messages/second, burst 200
//	cfg := ws.NewConfig(9000, ws.DefaultRateLimitConfig(), onMessage)
//
//	// Disabled
//	cfg := ws.NewConfig(9000, ws.NoRateLimit(), onMessage)
//
// # Shutdown Model
//
// Stop trades clean resource release for bounded latency: it closes the
// listener immediately, acquires the registry lock with a bounded timeout
// (degrading to best-effort cleanup on contention), sends best-effort close
// frames, force-closes every socket, and abandons the reactor goroutine with
// a warning if it does not exit within the grace period. An operator
// restart completes quickly even when a connection or lock is misbehaving.
package arenanet
