// Package transport implements the WebSocket server core: the non-blocking
// reactor loop, the lifecycle controller and the administrative operations
// exposed to embedding code.
//
// Exactly two concurrency domains exist: the reactor goroutine running the
// multiplexing loop, and the embedding application's goroutines issuing
// registry operations (send/broadcast/disconnect/count) concurrently with
// it. Message callbacks run on a third, internal dispatcher goroutine so
// the reactor never blocks on application code.
package transport

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/arenanet"
	"github.com/luciancaetano/arenanet/internal/frame"
	"github.com/luciancaetano/arenanet/internal/registry"
)

const (
	// registryLockTimeout bounds the shutdown path's lock acquisition; on
	// timeout cleanup degrades instead of hanging process exit.
	registryLockTimeout = 2 * time.Second

	// reactorJoinTimeout bounds how long Stop waits for the reactor
	// goroutine before abandoning it with a diagnostic.
	reactorJoinTimeout = 1500 * time.Millisecond

	dispatcherJoinTimeout = time.Second
)

// Config holds the settings for one server instance.
type Config struct {
	// Port is the TCP listening port. Required.
	Port int

	// RateLimit throttles inbound messages per connection. If nil,
	// DefaultRateLimitConfig() is used.
	RateLimit *RateLimitConfig

	// OnMessage receives every decoded text message and the
	// DisconnectSentinel event. May be nil.
	OnMessage arenanet.MessageCallback

	// Logger, when set, replaces the default stderr logger.
	Logger *zerolog.Logger
}

// RateLimitConfig defines per-connection inbound rate limiting.
type RateLimitConfig struct {
	// MessagesPerSecond defines how many messages a client can send per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 100 messages per second with burst of 200
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// event is one callback invocation queued for the dispatcher goroutine.
type event struct {
	connID  int
	payload string
}

// Server implements the arenanet.Server interface over raw sockets.
type Server struct {
	cfg      *Config
	log      zerolog.Logger
	registry *registry.Registry
	callback arenanet.MessageCallback

	running       atomic.Bool
	forceShutdown atomic.Bool
	listenFD      int

	// quit is closed when shutdown begins; every in-flight accept or
	// handshake task checks it (or forceShutdown) before unbounded work.
	quit chan struct{}

	// tasks carries registry mutations from handshake goroutines back to
	// the reactor, which drains it after each poll phase.
	tasks chan func()

	// events is the bounded channel between the reactor and the
	// dispatcher goroutine that invokes the message callback.
	events       chan event
	dispatchQuit chan struct{}

	reactorDone    chan struct{}
	dispatcherDone chan struct{}
}

// New creates a server instance. Nothing is bound until Start.
func New(cfg *Config) *Server {
	if cfg.RateLimit == nil {
		cfg.RateLimit = DefaultRateLimitConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger = &l
	}

	return &Server{
		cfg:      cfg,
		callback: cfg.OnMessage,
		registry: registry.New(),
		log: logger.With().
			Str("component", "transport").
			Str("server_id", uuid.NewString()).
			Logger(),
	}
}

// Start creates the listening socket and launches the reactor and
// dispatcher goroutines. A failed step releases everything created so far.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Port <= 0 || s.cfg.Port > 65535 {
		return errors.New(arenanet.ErrInvalidPort)
	}
	if !s.running.CompareAndSwap(false, true) {
		return errors.New(arenanet.ErrServerAlreadyRunning)
	}

	fd, err := listenSocket(s.cfg.Port)
	if err != nil {
		s.running.Store(false)
		s.log.Error().Err(err).Int("port", s.cfg.Port).Msg("transport setup failed")
		return err
	}

	s.listenFD = fd
	s.forceShutdown.Store(false)
	s.quit = make(chan struct{})
	s.tasks = make(chan func(), 128)
	s.events = make(chan event, 256)
	s.dispatchQuit = make(chan struct{})
	s.reactorDone = make(chan struct{})
	s.dispatcherDone = make(chan struct{})

	go s.dispatchLoop()
	go s.reactorLoop()

	s.log.Info().Int("port", s.cfg.Port).Msg("websocket server started")
	return nil
}

// Stop shuts down with bounded latency, trading clean resource release for
// a prompt return. The sequence is ordered: signal shutdown, close the
// listener, clear the registry under a bounded-timeout lock, force-close
// every collected handle after a best-effort close frame, then wait a grace
// period for the reactor before abandoning it.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.forceShutdown.Store(true)
	close(s.quit)

	// Blocks new accepts and tends to unblock a pending poll.
	closeFD(s.listenFD)

	records, ok := s.registry.TryLockClear(registryLockTimeout)
	if !ok {
		s.log.Warn().Msg("degraded shutdown: registry lock acquisition timed out")
	}

	closeData := frame.EncodeClose(1001, "server shutdown")
	for _, rec := range records {
		unix.SetNonblock(rec.FD, true)
		writeAll(rec.FD, closeData) // best effort, failures ignored
		closeFD(rec.FD)
		s.emit(rec.ID, arenanet.DisconnectSentinel)
	}

	select {
	case <-s.reactorDone:
	case <-time.After(reactorJoinTimeout):
		s.log.Warn().Msg("reactor goroutine abandoned after grace period")
	case <-ctx.Done():
		s.log.Warn().Msg("reactor join cut short by caller context")
	}

	close(s.dispatchQuit)
	select {
	case <-s.dispatcherDone:
	case <-time.After(dispatcherJoinTimeout):
		s.log.Warn().Msg("dispatcher goroutine abandoned after grace period")
	case <-ctx.Done():
	}

	s.log.Info().Int("closed_connections", len(records)).Msg("websocket server stopped")
	return nil
}

// Send delivers one framed text message to a connection. Unknown ids are a
// silent no-op. The registry lock is held across the write, so concurrent
// senders to the same connection serialize in lock-acquisition order.
func (s *Server) Send(connID int, text string) {
	data := frame.EncodeText(text)

	var writeErr error
	found := s.registry.Do(connID, func(rec *registry.Record) {
		writeErr = writeAll(rec.FD, data)
	})
	if !found {
		return
	}

	if writeErr != nil {
		s.dropConnection(connID, "write error", writeErr)
		return
	}
	s.log.Debug().Int("conn_id", connID).Int("bytes", len(data)).Msg("message sent")
}

// Broadcast delivers a text message to every registered connection.
func (s *Server) Broadcast(text string) {
	s.broadcastExcept(0, text)
}

// BroadcastExcept delivers a text message to every registered connection
// except connID.
func (s *Server) BroadcastExcept(connID int, text string) {
	s.broadcastExcept(connID, text)
}

func (s *Server) broadcastExcept(exceptID int, text string) {
	data := frame.EncodeText(text)

	sent := 0
	var failed []int
	s.registry.ForEach(func(rec *registry.Record) {
		if rec.ID == exceptID {
			return
		}
		if err := writeAll(rec.FD, data); err != nil {
			failed = append(failed, rec.ID)
			return
		}
		sent++
	})

	// Self-heal outside the lock: ForEach already released it.
	for _, id := range failed {
		s.dropConnection(id, "write error during broadcast", nil)
	}

	s.log.Debug().Int("recipients", sent).Int("excluded", exceptID).Msg("broadcast sent")
}

// Disconnect force-closes a connection and fires the disconnect event.
// Unknown ids are a silent no-op.
func (s *Server) Disconnect(connID int) {
	rec, ok := s.registry.Unregister(connID)
	if !ok {
		return
	}

	writeAll(rec.FD, frame.EncodeClose(1000, "")) // best effort
	closeFD(rec.FD)

	s.log.Info().Int("conn_id", connID).Str("remote_addr", rec.RemoteAddr).Msg("client forcefully disconnected")
	s.emit(connID, arenanet.DisconnectSentinel)
}

// ConnectedCount returns the number of registered connections.
func (s *Server) ConnectedCount() int {
	return s.registry.Count()
}

// dropConnection unregisters a connection after an I/O failure or orderly
// close and fires the disconnect event. Idempotent: a stale id (already
// removed by a concurrent path) is ignored.
func (s *Server) dropConnection(connID int, reason string, err error) {
	rec, ok := s.registry.Unregister(connID)
	if !ok {
		return
	}
	closeFD(rec.FD)

	s.log.Info().
		Int("conn_id", connID).
		Str("remote_addr", rec.RemoteAddr).
		Str("reason", reason).
		Err(err).
		Int("connected", s.registry.Count()).
		Msg("client disconnected")
	s.emit(connID, arenanet.DisconnectSentinel)
}

// newLimiter builds the per-connection inbound limiter, or nil when rate
// limiting is disabled.
func (s *Server) newLimiter() *rate.Limiter {
	if s.cfg.RateLimit == nil || !s.cfg.RateLimit.Enabled {
		return nil
	}
	return rate.NewLimiter(s.cfg.RateLimit.MessagesPerSecond, s.cfg.RateLimit.Burst)
}
