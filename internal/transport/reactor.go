package transport

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/luciancaetano/arenanet/internal/frame"
	"github.com/luciancaetano/arenanet/internal/handshake"
	"github.com/luciancaetano/arenanet/internal/registry"
)

const (
	// pollTimeoutMS keeps shutdown latency bounded by the poll call, not by
	// an unrelated sleep interval.
	pollTimeoutMS = 50

	// idlePollTimeoutMS is the longer backoff used when no client handles
	// exist, instead of spinning on only the listening socket.
	idlePollTimeoutMS = 200

	readChunkSize = 4096

	// Handshake reads are bounded-attempt: a freshly accepted non-blocking
	// socket usually needs a few tries before the request arrives.
	handshakeAttempts = 20
	handshakeWait     = 20 * time.Millisecond
)

var (
	errRequestTooLarge   = errors.New("upgrade request exceeds size cap")
	errIncompleteRequest = errors.New("no complete upgrade request within retry budget")
	errPeerClosed        = errors.New("peer closed during handshake")
	errShuttingDown      = errors.New("server shutting down")
)

// reactorLoop is the single multiplexing loop. Per iteration it polls the
// listening handle and a registry snapshot with a short timeout, accepts
// and hands new connections to handshake tasks, drains the task queue, and
// reads ready clients — never holding the registry lock across a syscall.
func (s *Server) reactorLoop() {
	defer close(s.reactorDone)

	for {
		if !s.running.Load() || s.forceShutdown.Load() {
			return
		}

		snapshot := s.registry.Snapshot()

		timeout := pollTimeoutMS
		if len(snapshot) == 0 {
			timeout = idlePollTimeoutMS
		}

		fds := make([]unix.PollFd, 0, len(snapshot)+1)
		fds = append(fds, unix.PollFd{Fd: int32(s.listenFD), Events: unix.POLLIN})
		for _, e := range snapshot {
			fds = append(fds, unix.PollFd{Fd: int32(e.FD), Events: unix.POLLIN})
		}

		n, err := unix.Poll(fds, timeout)

		// Re-check immediately after the blocking call returns so shutdown
		// latency is bounded by the poll timeout.
		if !s.running.Load() || s.forceShutdown.Load() {
			return
		}
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			s.log.Error().Err(err).Msg("poll failed")
			time.Sleep(pollTimeoutMS * time.Millisecond)
			continue
		}

		if n > 0 && fds[0].Revents&unix.POLLIN != 0 {
			s.acceptPending()
		}

		s.drainTasks()

		if n > 0 {
			for i, e := range snapshot {
				revents := fds[i+1].Revents
				if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
					s.readClient(e)
				}
			}
		}

		s.drainTasks()
	}
}

// acceptPending drains the listener's accept queue. Each accepted socket is
// handed to a handshake task on its own goroutine; the task reports its
// register-or-close outcome back through the task queue.
func (s *Server) acceptPending() {
	for {
		fd, remote, err := acceptConn(s.listenFD)
		if err != nil {
			if !isWouldBlock(err) && !errors.Is(err, unix.ECONNABORTED) {
				s.log.Debug().Err(err).Msg("accept failed")
			}
			return
		}
		if s.forceShutdown.Load() {
			closeFD(fd)
			return
		}
		go s.negotiate(fd, remote)
	}
}

// drainTasks applies queued registry mutations on the reactor goroutine.
func (s *Server) drainTasks() {
	for {
		select {
		case task := <-s.tasks:
			task()
		default:
			return
		}
	}
}

// negotiate runs the WebSocket handshake for one accepted socket. On
// success the registration is queued for the reactor to apply; on failure
// the socket is closed, with a 400 response when validation failed and no
// response when no complete request arrived.
func (s *Server) negotiate(fd int, remote string) {
	raw, err := s.readUpgradeRequest(fd)
	if err != nil {
		if errors.Is(err, errRequestTooLarge) {
			s.log.Warn().Str("remote_addr", remote).Msg("oversized upgrade request")
			writeAll(fd, handshake.BadRequest())
		} else {
			s.log.Debug().Str("remote_addr", remote).Err(err).Msg("no upgrade request received")
		}
		closeFD(fd)
		return
	}

	req, err := handshake.Parse(raw)
	if err != nil {
		s.log.Warn().Str("remote_addr", remote).Err(err).Msg("websocket handshake failed")
		writeAll(fd, handshake.BadRequest())
		closeFD(fd)
		return
	}

	if err := writeAll(fd, handshake.Response(req)); err != nil {
		s.log.Warn().Str("remote_addr", remote).Err(err).Msg("failed to send handshake response")
		closeFD(fd)
		return
	}

	rec := &registry.Record{
		ID:         s.registry.NextID(),
		FD:         fd,
		RemoteAddr: remote,
		State:      registry.StateCompleted,
		Limiter:    s.newLimiter(),
	}

	register := func() {
		if s.forceShutdown.Load() {
			closeFD(fd)
			return
		}
		if err := s.registry.Register(rec); err != nil {
			s.log.Error().Int("conn_id", rec.ID).Err(err).Msg("failed to register connection")
			closeFD(fd)
			return
		}
		s.log.Info().
			Int("conn_id", rec.ID).
			Str("remote_addr", remote).
			Int("connected", s.registry.Count()).
			Msg("websocket client connected")
	}

	select {
	case s.tasks <- register:
	case <-s.quit:
		closeFD(fd)
	}
}

// readUpgradeRequest accumulates the HTTP Upgrade request with a fixed
// retry budget, capped at 8 KB and terminated by the header blank line.
func (s *Server) readUpgradeRequest(fd int) ([]byte, error) {
	var request []byte
	chunk := make([]byte, readChunkSize)

	for attempt := 0; attempt < handshakeAttempts; attempt++ {
		if s.forceShutdown.Load() {
			return nil, errShuttingDown
		}

		n, err := unix.Read(fd, chunk)
		switch {
		case err != nil:
			if !isWouldBlock(err) {
				return nil, err
			}
		case n == 0:
			return nil, errPeerClosed
		default:
			request = append(request, chunk[:n]...)
			if handshake.Complete(request) {
				return request, nil
			}
			if len(request) > handshake.MaxRequestSize {
				return nil, errRequestTooLarge
			}
		}

		time.Sleep(handshakeWait)
	}

	return nil, errIncompleteRequest
}

// readClient reads one chunk from a ready client. Zero bytes is an orderly
// disconnect; would-block is benign (the snapshot may be stale); any other
// error is a disconnect; data goes through the frame codec.
func (s *Server) readClient(e registry.Entry) {
	buf := make([]byte, readChunkSize)
	n, err := unix.Read(e.FD, buf)

	switch {
	case err != nil:
		if isWouldBlock(err) {
			return
		}
		s.dropConnection(e.ID, "read error", err)
	case n == 0:
		s.dropConnection(e.ID, "client closed connection", nil)
	default:
		s.handleInbound(e.ID, buf[:n])
	}
}

// handleInbound decodes a raw chunk and delivers the message. Decode
// failure is "no message", never a reason to close: unsupported frame
// types are dropped and the connection stays open.
func (s *Server) handleInbound(connID int, data []byte) {
	text, ok := frame.DecodeText(data)
	if !ok {
		s.log.Debug().Int("conn_id", connID).Int("bytes", len(data)).Msg("ignoring undecodable frame")
		return
	}

	if !s.allowMessage(connID) {
		s.log.Warn().Int("conn_id", connID).Msg("rate limit exceeded, disconnecting client")
		s.Disconnect(connID)
		return
	}

	s.log.Debug().Int("conn_id", connID).Int("bytes", len(data)).Msg("message received")
	s.emit(connID, text)
}

// allowMessage checks the connection's inbound rate limiter.
func (s *Server) allowMessage(connID int) bool {
	rec, ok := s.registry.Lookup(connID)
	if !ok || rec.Limiter == nil {
		return true
	}
	return rec.Limiter.Allow()
}
