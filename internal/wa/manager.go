package wa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/leadstack/wa-gateway/internal/cache"
	"github.com/leadstack/wa-gateway/internal/connection"
	"github.com/leadstack/wa-gateway/internal/creds"
)

// Manager is the process-wide registry of live runtime sessions and the only
// component allowed to construct or destroy them. All registry mutations are
// serialized by the mutex so the at-most-one-live-session-per-connection
// invariant holds under concurrent HTTP requests.
type Manager struct {
	dialer  Dialer
	creds   creds.Store
	records connection.Repository // nil skips ownership checks and mirroring
	cache   cache.StatusCache     // nil disables the status cache
	logger  *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a registry. Distinct managers are fully independent,
// which is what lets tests instantiate one per test case.
func NewManager(dialer Dialer, credStore creds.Store, records connection.Repository, statusCache cache.StatusCache, logger *log.Logger) *Manager {
	return &Manager{
		dialer:   dialer,
		creds:    credStore,
		records:  records,
		cache:    statusCache,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// CreateSession constructs a new runtime session for the connection and
// starts its handshake in the background. It refuses if any instance is
// already registered: callers wanting replace semantics must use
// EnsureSession. Dial failures (credential store I/O) propagate as hard
// errors; handshake outcomes are observed via events or status queries.
func (m *Manager) CreateSession(ctx context.Context, id, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	return m.startSessionLocked(ctx, id, tenantID)
}

// EnsureResult reports what EnsureSession found or did.
type EnsureResult struct {
	Created bool
	Status  Status
}

// EnsureSession is the idempotent, self-healing variant of CreateSession:
// a live session is returned as-is, a stale (terminal) one is torn down and
// replaced, and a missing one is created.
func (m *Manager) EnsureSession(ctx context.Context, id, tenantID string) (EnsureResult, error) {
	m.mu.Lock()

	if s, exists := m.sessions[id]; exists {
		st := s.Status()
		if st.Live() {
			m.mu.Unlock()
			return EnsureResult{Created: false, Status: st}, nil
		}
		delete(m.sessions, id)
		m.mu.Unlock()
		s.teardown()
		m.mu.Lock()
		// Re-check: a concurrent create may have won the race while the stale
		// session was being torn down.
		if s, exists := m.sessions[id]; exists {
			st := s.Status()
			m.mu.Unlock()
			return EnsureResult{Created: false, Status: st}, nil
		}
	}
	defer m.mu.Unlock()

	if err := m.startSessionLocked(ctx, id, tenantID); err != nil {
		return EnsureResult{}, err
	}
	return EnsureResult{Created: true, Status: StatusConnecting}, nil
}

// startSessionLocked dials and registers a new session. Caller holds m.mu.
// The caller's ctx covers only the synchronous dial; the handshake runs under
// the session's own lifecycle context so it survives the creating request.
func (m *Manager) startSessionLocked(ctx context.Context, id, tenantID string) error {
	client, err := m.dialer.Dial(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to open protocol client for %s: %w", id, err)
	}

	s := newSession(id, tenantID, client, m.records, m.cache, m.logger)
	m.sessions[id] = s
	m.logger.Printf("Registered session for connection %s (tenant=%s, resumable=%v)", id, tenantID, client.HasCredential())

	go s.start()
	return nil
}

// DeleteSession tears down the runtime session without deleting persisted
// credentials. Idempotent: unknown ids are a no-op.
func (m *Manager) DeleteSession(id string) {
	m.mu.Lock()
	s, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !exists {
		return
	}
	s.teardown()
	m.logger.Printf("Removed session for connection %s", id)
}

// GetSession returns the live session for the connection, or nil.
func (m *Manager) GetSession(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// GetSessionStatus returns the live session's status; ok is false when no
// session is registered.
func (m *Manager) GetSessionStatus(id string) (Status, bool) {
	m.mu.Lock()
	s, exists := m.sessions[id]
	m.mu.Unlock()

	if !exists {
		return StatusDisconnected, false
	}
	return s.Status(), true
}

// Events returns the per-session event stream for SSE bridging, or nil when
// no live session exists. Callers must create a session first.
func (m *Manager) Events(id string) *Emitter {
	s := m.GetSession(id)
	if s == nil {
		return nil
	}
	return s.Events()
}

// SendMessage attempts a single at-most-once delivery over the connection's
// live session. Expected failures come back as the sentinel errors
// ErrNoSession, ErrNotConnected and ErrSendRejected; no transport I/O happens
// unless the session is connected. Retry policy belongs to the caller.
func (m *Manager) SendMessage(ctx context.Context, id, recipient string, p Payload) (string, error) {
	s := m.GetSession(id)
	if s == nil {
		return "", fmt.Errorf("%w: %s", ErrNoSession, id)
	}

	msgID, err := s.send(ctx, recipient, p)
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return "", err
		}
		m.logger.Printf("Send on connection %s to %s failed: %v", id, recipient, err)
		return "", fmt.Errorf("%w: %v", ErrSendRejected, err)
	}
	return msgID, nil
}

// Availability is the structured pre-flight answer for a send path.
type Availability struct {
	Available bool   `json:"available"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// CheckAvailability combines tenant-ownership validation with registry state
// so HTTP handlers can fail fast with a structured reason before attempting
// a send. Ownership mismatches never reach transport logic.
func (m *Manager) CheckAvailability(ctx context.Context, id, tenantID string) (Availability, error) {
	if m.records != nil {
		rec, err := m.records.Get(ctx, id)
		if err != nil {
			if errors.Is(err, connection.ErrNotFound) {
				return Availability{Available: false, Status: StatusDisconnected.String(), Reason: "unknown connection"}, nil
			}
			return Availability{}, err
		}
		if rec.CompanyID != tenantID {
			return Availability{Available: false, Status: StatusDisconnected.String(), Reason: "connection belongs to another workspace"}, nil
		}
	}

	st, ok := m.GetSessionStatus(id)
	if !ok {
		return Availability{Available: false, Status: StatusDisconnected.String(), Reason: "no live session"}, nil
	}
	if st != StatusConnected {
		return Availability{Available: false, Status: st.String(), Reason: "session not connected"}, nil
	}
	return Availability{Available: true, Status: st.String()}, nil
}

// HasStoredCredential asks the credential store whether a resumable
// credential exists, independent of runtime state.
func (m *Manager) HasStoredCredential(id string) bool {
	return m.creds.Has(id)
}

// Logout permanently unpairs a connection: best-effort remote logout,
// runtime teardown and credential deletion. After Logout returns without
// error, HasStoredCredential reports false and a new session will require
// QR pairing.
func (m *Manager) Logout(ctx context.Context, id string) error {
	m.mu.Lock()
	s, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if exists {
		if err := s.client.Logout(ctx); err != nil {
			// The remote side may already consider us gone; local cleanup
			// still has to happen.
			m.logger.Printf("Remote logout for connection %s failed: %v", id, err)
		}
		s.teardown()
	}

	if err := m.creds.Delete(id); err != nil {
		return fmt.Errorf("failed to delete credentials for %s: %w", id, err)
	}
	m.logger.Printf("Logged out connection %s and deleted credentials", id)
	return nil
}

// Snapshot returns registry counts for health reporting.
func (m *Manager) Snapshot() (total, connected int) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		total++
		if s.Status() == StatusConnected {
			connected++
		}
	}
	return total, connected
}

// Shutdown tears down every live session. Used on process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for id, s := range sessions {
		s.teardown()
		m.logger.Printf("Shut down session for connection %s", id)
	}
}
