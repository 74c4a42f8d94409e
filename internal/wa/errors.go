package wa

import "errors"

// Expected, recoverable conditions are sentinel errors so HTTP handlers can
// map them to status codes without string matching. Anything else returned by
// the manager is an unexpected failure with no safe degraded mode.
var (
	// ErrSessionExists is returned by CreateSession when a live runtime
	// session already holds the connection id. Callers that want self-healing
	// semantics must use EnsureSession instead.
	ErrSessionExists = errors.New("session already exists for connection")

	// ErrNoSession is returned when an operation requires a live runtime
	// session and none is registered.
	ErrNoSession = errors.New("no live session for connection")

	// ErrNotConnected is returned by SendMessage when the session exists but
	// has not reached the connected state.
	ErrNotConnected = errors.New("session is not connected")

	// ErrSendRejected wraps transport-level send failures. The message was
	// not accepted for delivery; the session itself may still be healthy.
	ErrSendRejected = errors.New("message rejected by transport")
)
