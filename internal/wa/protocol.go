package wa

import "context"

// ProtoKind identifies a low-level protocol notification
type ProtoKind int

const (
	ProtoQR ProtoKind = iota
	ProtoConnected
	ProtoLoggedOut
	ProtoDisconnected
	ProtoStreamError
)

// ProtoEvent is a protocol-layer notification translated by the session
// state machine into status transitions and emitted events.
type ProtoEvent struct {
	Kind  ProtoKind
	Code  string // pairing code for ProtoQR
	Phone string // resolved phone number on ProtoConnected
	Err   error  // cause for ProtoStreamError
}

// MediaKind selects the media message type for a payload
type MediaKind string

const (
	MediaNone     MediaKind = ""
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "file"
)

// Payload is one outbound message. Text-only when Media is empty.
type Payload struct {
	Text     string
	Media    []byte
	Kind     MediaKind
	Caption  string
	FileName string
}

// Client is the protocol session for one connection. The production
// implementation wraps whatsmeow; tests use fakes so the state machine and
// registry never touch real network I/O.
type Client interface {
	// HasCredential reports whether the underlying store holds material for a
	// silent resume. Decides the resume-vs-pair fork before Connect.
	HasCredential() bool
	// Connect starts the handshake. onEvent receives protocol notifications
	// until Disconnect; events for one client arrive serialized. Connect
	// returns once the handshake is underway, not when it completes.
	Connect(ctx context.Context, onEvent func(ProtoEvent)) error
	// Disconnect closes the transport without discarding credentials.
	Disconnect()
	// Logout invalidates the remote pairing in addition to disconnecting.
	Logout(ctx context.Context) error
	// Send attempts a single at-most-once delivery and returns the message id.
	Send(ctx context.Context, recipient string, p Payload) (string, error)
	// Close releases the credential store handle.
	Close() error
}

// Dialer opens a protocol client for a connection id, loading any persisted
// credential material.
type Dialer interface {
	Dial(ctx context.Context, id string) (Client, error)
}
