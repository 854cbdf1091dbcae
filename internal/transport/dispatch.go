package transport

import "time"

// emitTimeout bounds how long an emit may wait on a backlogged dispatcher
// before dropping the event with a warning. Keeps the reactor and the
// shutdown path from blocking indefinitely on a stuck callback.
const emitTimeout = time.Second

// emit queues one callback invocation. Events from a single connection are
// queued in receipt order; the dispatcher preserves that order.
func (s *Server) emit(connID int, payload string) {
	if s.callback == nil {
		return
	}

	select {
	case s.events <- event{connID: connID, payload: payload}:
	case <-time.After(emitTimeout):
		s.log.Warn().Int("conn_id", connID).Msg("dispatcher backlogged, dropping event")
	}
}

// dispatchLoop invokes the message callback on its own goroutine so the
// reactor never blocks inside application code. On shutdown it drains what
// is already queued, then exits.
func (s *Server) dispatchLoop() {
	defer close(s.dispatcherDone)

	for {
		select {
		case ev := <-s.events:
			s.callback(ev.connID, ev.payload)
		case <-s.dispatchQuit:
			for {
				select {
				case ev := <-s.events:
					s.callback(ev.connID, ev.payload)
				default:
					return
				}
			}
		}
	}
}
