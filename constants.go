package arenanet

// DisconnectSentinel is the literal payload delivered to the message
// callback when a connection is removed for any reason.
const DisconnectSentinel = "DISCONNECT"

// Standard error messages
const (
	// Lifecycle errors
	ErrServerAlreadyRunning = "server already running"
	ErrServerNotRunning     = "server not running"
	ErrInvalidPort          = "invalid listening port"

	// Transport setup errors
	ErrSocketCreate = "failed to create listening socket"
	ErrSocketOption = "failed to set socket option"
	ErrSocketBind   = "failed to bind listening socket"
	ErrSocketListen = "failed to listen on socket"

	// Registry errors
	ErrDuplicateConnection = "connection id already registered"
)
