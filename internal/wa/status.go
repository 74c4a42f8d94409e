package wa

// Status represents the lifecycle state of one connection's runtime session
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusQRPending
	StatusConnected
	StatusError
)

// String returns a string representation of the session status
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusQRPending:
		return "qr_pending"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Live reports whether a session in this status still owns its episode and
// can be reused by EnsureSession instead of being torn down.
func (s Status) Live() bool {
	return s == StatusConnecting || s == StatusQRPending || s == StatusConnected
}
