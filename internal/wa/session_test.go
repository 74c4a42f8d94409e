package wa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadstack/wa-gateway/internal/connection"
)

func startTestSession(t *testing.T, client *fakeClient, repo *fakeRepo) *Session {
	t.Helper()
	var records connection.Repository
	if repo != nil {
		records = repo
	}
	s := newSession(client.id, "tenant-x", client, records, nil, testLogger())
	go s.start()
	return s
}

func TestSession_PairingEventOrder(t *testing.T) {
	t.Parallel()

	client := &fakeClient{id: "conn-a"}
	s := startTestSession(t, client, nil)

	events, cancel := s.Events().Subscribe()
	defer cancel()

	client.fire(t, ProtoEvent{Kind: ProtoQR, Code: "Q1"})
	client.fire(t, ProtoEvent{Kind: ProtoConnected, Phone: "551"})
	client.fire(t, ProtoEvent{Kind: ProtoLoggedOut})

	got := collectEvents(events, 3, time.Second)
	if len(got) != 3 {
		t.Fatalf("expected three events, got %d", len(got))
	}
	want := []EventType{EventQR, EventConnected, EventDisconnected}
	for i, ev := range got {
		if ev.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], ev.Type)
		}
	}

	if s.Status() != StatusDisconnected {
		t.Fatalf("expected terminal disconnected, got %s", s.Status())
	}
}

func TestSession_QRClearedOnConnect(t *testing.T) {
	t.Parallel()

	client := &fakeClient{id: "conn-b"}
	s := startTestSession(t, client, nil)

	client.fire(t, ProtoEvent{Kind: ProtoQR, Code: "Q1"})
	if s.QRPayload() != "Q1" {
		t.Fatalf("expected current payload Q1, got %q", s.QRPayload())
	}

	client.fire(t, ProtoEvent{Kind: ProtoConnected, Phone: "551"})
	if s.QRPayload() != "" {
		t.Fatalf("expected payload cleared after connect, got %q", s.QRPayload())
	}

	// A rotation that raced the pairing confirmation must not resurface.
	client.fire(t, ProtoEvent{Kind: ProtoQR, Code: "Q2"})
	if s.Status() != StatusConnected || s.QRPayload() != "" {
		t.Fatalf("late qr after connect must be ignored, status=%s qr=%q", s.Status(), s.QRPayload())
	}
}

func TestSession_TerminalIsInert(t *testing.T) {
	t.Parallel()

	client := &fakeClient{id: "conn-c"}
	s := startTestSession(t, client, nil)

	client.fire(t, ProtoEvent{Kind: ProtoStreamError, Err: errors.New("peer reset")})
	if s.Status() != StatusError {
		t.Fatalf("expected error status, got %s", s.Status())
	}
	if s.LastError() != "peer reset" {
		t.Fatalf("expected last error preserved, got %q", s.LastError())
	}

	events, cancel := s.Events().Subscribe()
	defer cancel()

	// Nothing revives a terminal session.
	client.fire(t, ProtoEvent{Kind: ProtoQR, Code: "Q9"})
	client.fire(t, ProtoEvent{Kind: ProtoConnected, Phone: "551"})

	if got := collectEvents(events, 1, 50*time.Millisecond); len(got) != 0 {
		t.Fatalf("terminal session must not emit, got %#v", got)
	}
	if s.Status() != StatusError {
		t.Fatalf("terminal status must not change, got %s", s.Status())
	}

	if _, err := s.send(context.Background(), "551", Payload{Text: "hi"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected from terminal session, got %v", err)
	}
}

func TestSession_DropBeforeConnectedFails(t *testing.T) {
	t.Parallel()

	t.Run("logged out during pairing", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{id: "conn-d"}
		s := startTestSession(t, client, nil)

		client.fire(t, ProtoEvent{Kind: ProtoQR, Code: "Q1"})
		client.fire(t, ProtoEvent{Kind: ProtoLoggedOut})

		if s.Status() != StatusError {
			t.Fatalf("expected error status, got %s", s.Status())
		}
		if s.LastError() != "credential rejected by remote" {
			t.Fatalf("unexpected reason: %q", s.LastError())
		}
	})

	t.Run("dropped while connecting", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{id: "conn-e"}
		s := startTestSession(t, client, nil)

		client.fire(t, ProtoEvent{Kind: ProtoDisconnected})

		if s.Status() != StatusError {
			t.Fatalf("expected error status, got %s", s.Status())
		}
	})
}

func TestSession_ConnectErrorFailsSession(t *testing.T) {
	t.Parallel()

	client := &fakeClient{id: "conn-f", connectErr: errors.New("credential file corrupt")}
	s := startTestSession(t, client, nil)

	deadline := time.Now().Add(2 * time.Second)
	for s.Status() != StatusError {
		if time.Now().After(deadline) {
			t.Fatalf("session never failed, status=%s", s.Status())
		}
		time.Sleep(time.Millisecond)
	}
	if s.LastError() != "credential file corrupt" {
		t.Fatalf("unexpected reason: %q", s.LastError())
	}
}

func TestSession_TeardownClosesStream(t *testing.T) {
	t.Parallel()

	client := &fakeClient{id: "conn-g"}
	s := startTestSession(t, client, nil)

	client.fire(t, ProtoEvent{Kind: ProtoConnected, Phone: "551"})

	events, cancel := s.Events().Subscribe()
	defer cancel()

	s.teardown()
	s.teardown() // idempotent

	got := collectEvents(events, 2, time.Second)
	if len(got) != 1 || got[0].Type != EventDisconnected {
		t.Fatalf("expected exactly one disconnected event, got %#v", got)
	}
	if _, open := <-events; open {
		t.Fatalf("expected subscriber channel to be closed")
	}
	if client.disconnects == 0 || client.closes == 0 {
		t.Fatalf("expected transport disconnect and close")
	}

	// Subscribing after teardown yields an already-closed channel.
	late, lateCancel := s.Events().Subscribe()
	defer lateCancel()
	if _, open := <-late; open {
		t.Fatalf("expected closed channel for late subscriber")
	}
}

func TestSession_MirrorsStatusTransitions(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(connection.Record{ID: "conn-h", CompanyID: "tenant-x", Status: connection.StatusDisconnected})
	client := &fakeClient{id: "conn-h"}
	startTestSession(t, client, repo)

	client.fire(t, ProtoEvent{Kind: ProtoQR, Code: "Q1"})
	client.fire(t, ProtoEvent{Kind: ProtoConnected, Phone: "5511999999999"})

	repo.mu.Lock()
	mirrors := append([]mirrorCall(nil), repo.mirrors...)
	rec := repo.records["conn-h"]
	repo.mu.Unlock()

	want := []string{"connecting", "qr_pending", "connected"}
	if len(mirrors) != len(want) {
		t.Fatalf("expected %d mirror writes, got %#v", len(want), mirrors)
	}
	for i, m := range mirrors {
		if m.Status != want[i] {
			t.Fatalf("mirror %d: expected %s, got %s", i, want[i], m.Status)
		}
	}
	if rec.Status != connection.StatusConnected || rec.Phone != "5511999999999" {
		t.Fatalf("record not updated: %#v", rec)
	}
}

// failingRepo rejects every write so tests can prove mirroring stays
// best-effort.
type failingRepo struct{}

func (failingRepo) Get(ctx context.Context, id string) (*connection.Record, error) {
	return nil, connection.ErrNotFound
}

func (failingRepo) ListConnected(ctx context.Context) ([]connection.Record, error) {
	return nil, nil
}

func (failingRepo) MirrorStatus(ctx context.Context, id, status, phone string) error {
	return errors.New("database unavailable")
}

func TestSession_MirrorFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	client := &fakeClient{id: "conn-i"}
	s := newSession(client.id, "tenant-x", client, failingRepo{}, nil, testLogger())
	go s.start()

	client.fire(t, ProtoEvent{Kind: ProtoConnected, Phone: "551"})

	if s.Status() != StatusConnected {
		t.Fatalf("mirror failure must not derail the session, status=%s", s.Status())
	}
	if _, err := s.send(context.Background(), "551", Payload{Text: "hi"}); err != nil {
		t.Fatalf("send must work despite mirror failures: %v", err)
	}
}
