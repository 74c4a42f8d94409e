package wa

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/leadstack/wa-gateway/internal/cache"
	"github.com/leadstack/wa-gateway/internal/connection"
)

// mirrorTimeout bounds the best-effort record/cache writes performed on
// status transitions so a slow database never stalls protocol callbacks.
const mirrorTimeout = 5 * time.Second

// Session is the runtime state machine for one connection's live protocol
// session. It owns exactly one episode: once a terminal status (disconnected,
// error) is reached the instance turns inert and the Manager must construct a
// replacement to retry.
type Session struct {
	id       string
	tenantID string
	client   Client
	records  connection.Repository // nil disables record mirroring
	cache    cache.StatusCache     // nil disables the status cache
	logger   *log.Logger

	emitter *Emitter

	// The session outlives the HTTP request that created it, so the
	// handshake and QR channel run under the session's own context. Canceled
	// by teardown.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	status    Status
	qrPayload string
	phone     string
	lastError string
	terminal  bool
}

func newSession(id, tenantID string, client Client, records connection.Repository, statusCache cache.StatusCache, logger *log.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       id,
		tenantID: tenantID,
		client:   client,
		records:  records,
		cache:    statusCache,
		logger:   logger,
		emitter:  newEmitter(),
		ctx:      ctx,
		cancel:   cancel,
		status:   StatusDisconnected,
	}
}

// ID returns the connection identifier bound to this session.
func (s *Session) ID() string { return s.id }

// TenantID returns the owning tenant recorded at creation time.
func (s *Session) TenantID() string { return s.tenantID }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// QRPayload returns the current pairing code, empty unless qr_pending.
func (s *Session) QRPayload() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qrPayload
}

// Phone returns the phone number resolved during authentication.
func (s *Session) Phone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phone
}

// LastError returns the failure reason, empty unless status is error.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Events returns the session's event stream.
func (s *Session) Events() *Emitter { return s.emitter }

// start begins the protocol handshake. Called once by the Manager; the
// handshake continues in the background and completion is observed via
// events or status queries.
func (s *Session) start() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.status = StatusConnecting
	s.mu.Unlock()

	s.mirror(StatusConnecting, "")

	if err := s.client.Connect(s.ctx, s.handleProtoEvent); err != nil {
		s.logger.Printf("Session %s failed to start handshake: %v", s.id, err)
		s.fail(err.Error())
	}
}

// handleProtoEvent translates protocol notifications into status transitions.
// The protocol layer delivers events for one client serialized, so the lock
// here only guards against concurrent manager teardown.
func (s *Session) handleProtoEvent(ev ProtoEvent) {
	switch ev.Kind {
	case ProtoQR:
		s.mu.Lock()
		// A code rotation racing the pairing confirmation must not surface a
		// stale code after connected.
		if s.terminal || s.status == StatusConnected {
			s.mu.Unlock()
			return
		}
		s.status = StatusQRPending
		s.qrPayload = ev.Code
		s.mu.Unlock()

		s.logger.Printf("Session %s received pairing code", s.id)
		s.emitter.emit(Event{Type: EventQR, ConnectionID: s.id, QR: ev.Code, At: time.Now()})
		s.mirror(StatusQRPending, "")

	case ProtoConnected:
		s.mu.Lock()
		if s.terminal {
			s.mu.Unlock()
			return
		}
		s.status = StatusConnected
		s.phone = ev.Phone
		s.qrPayload = ""
		s.mu.Unlock()

		s.logger.Printf("Session %s connected (phone=%s)", s.id, ev.Phone)
		s.emitter.emit(Event{Type: EventConnected, ConnectionID: s.id, Phone: ev.Phone, At: time.Now()})
		s.mirror(StatusConnected, ev.Phone)

	case ProtoLoggedOut, ProtoDisconnected:
		s.mu.Lock()
		if s.terminal {
			s.mu.Unlock()
			return
		}
		wasConnected := s.status == StatusConnected
		s.mu.Unlock()

		if wasConnected {
			reason := "connection closed"
			if ev.Kind == ProtoLoggedOut {
				reason = "logged out by remote"
			}
			s.finish(StatusDisconnected, reason)
		} else {
			// Drop before ever reaching connected: the episode failed.
			reason := "connection closed before session was established"
			if ev.Kind == ProtoLoggedOut {
				reason = "credential rejected by remote"
			}
			s.fail(reason)
		}

	case ProtoStreamError:
		reason := "stream error"
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		s.logger.Printf("Session %s stream error: %s", s.id, reason)
		s.fail(reason)
	}
}

// finish moves the session to the terminal disconnected state.
func (s *Session) finish(status Status, reason string) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.terminal = true
	s.qrPayload = ""
	s.mu.Unlock()

	s.logger.Printf("Session %s disconnected: %s", s.id, reason)
	s.emitter.emit(Event{Type: EventDisconnected, ConnectionID: s.id, Reason: reason, At: time.Now()})
	s.mirror(status, "")
}

// fail moves the session to the terminal error state.
func (s *Session) fail(reason string) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.status = StatusError
	s.terminal = true
	s.lastError = reason
	s.qrPayload = ""
	s.mu.Unlock()

	s.emitter.emit(Event{Type: EventError, ConnectionID: s.id, Reason: reason, At: time.Now()})
	s.mirror(StatusError, "")
}

// send performs a single at-most-once delivery attempt. The connected check
// happens before any transport I/O.
func (s *Session) send(ctx context.Context, recipient string, p Payload) (string, error) {
	s.mu.Lock()
	if s.terminal || s.status != StatusConnected {
		s.mu.Unlock()
		return "", ErrNotConnected
	}
	s.mu.Unlock()

	return s.client.Send(ctx, recipient, p)
}

// teardown closes the transport and the event stream. Idempotent; credential
// material is left in place for a later resume.
func (s *Session) teardown() {
	s.mu.Lock()
	alreadyTerminal := s.terminal
	wasLive := s.status.Live()
	s.terminal = true
	s.status = StatusDisconnected
	s.qrPayload = ""
	s.mu.Unlock()

	s.cancel()
	s.client.Disconnect()
	if err := s.client.Close(); err != nil {
		s.logger.Printf("Session %s close error: %v", s.id, err)
	}

	if !alreadyTerminal && wasLive {
		s.emitter.emit(Event{Type: EventDisconnected, ConnectionID: s.id, Reason: "session torn down", At: time.Now()})
		s.mirror(StatusDisconnected, "")
	}
	s.emitter.close()
}

// mirror pushes the runtime status onto the connection record and the status
// cache. Best-effort: failures are logged, never fatal to the session.
func (s *Session) mirror(status Status, phone string) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if s.records != nil {
		if err := s.records.MirrorStatus(ctx, s.id, status.String(), phone); err != nil {
			s.logger.Printf("Session %s failed to mirror status %s to record: %v", s.id, status, err)
		}
	}
	if s.cache != nil {
		entry := cache.Entry{Status: status.String(), Phone: phone, UpdatedAt: time.Now()}
		if err := s.cache.SetStatus(ctx, s.id, entry); err != nil {
			s.logger.Printf("Session %s failed to mirror status %s to cache: %v", s.id, status, err)
		}
	}
}
