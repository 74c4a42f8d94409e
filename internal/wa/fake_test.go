package wa

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leadstack/wa-gateway/internal/connection"
)

// fakeClient is a protocol client whose handshake is driven by the test via
// fire(). It never touches the network.
type fakeClient struct {
	id      string
	hasCred bool

	mu           sync.Mutex
	onEvent      func(ProtoEvent)
	connectCtx   context.Context
	connectErr   error
	sendErr      error
	sendCalls    int
	sentTo       []string
	sentPayloads []Payload
	disconnects  int
	closes       int
	logouts      int
}

func (f *fakeClient) HasCredential() bool { return f.hasCred }

func (f *fakeClient) Connect(ctx context.Context, onEvent func(ProtoEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connectCtx = ctx
	f.onEvent = onEvent
	return nil
}

// handshakeCtx returns the context handed to Connect, waiting for the
// asynchronous session start to have happened.
func (f *fakeClient) handshakeCtx(t *testing.T) context.Context {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		ctx := f.connectCtx
		f.mu.Unlock()
		if ctx != nil {
			return ctx
		}
		if time.Now().After(deadline) {
			t.Fatalf("fakeClient %s: Connect was never called", f.id)
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

func (f *fakeClient) Send(ctx context.Context, recipient string, p Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sentTo = append(f.sentTo, recipient)
	f.sentPayloads = append(f.sentPayloads, p)
	return "MSG-1", nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// fire delivers a protocol event, waiting until Connect has registered the
// handler (CreateSession starts the handshake asynchronously).
func (f *fakeClient) fire(t *testing.T, ev ProtoEvent) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		cb := f.onEvent
		f.mu.Unlock()
		if cb != nil {
			cb(ev)
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("fakeClient %s: Connect never registered an event handler", f.id)
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeClient) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

// fakeDialer hands out pre-registered fakeClients and counts dials per id.
type fakeDialer struct {
	mu      sync.Mutex
	clients map[string][]*fakeClient
	dials   map[string]int
	dialErr error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		clients: make(map[string][]*fakeClient),
		dials:   make(map[string]int),
	}
}

// addClient queues a client to be returned by the next Dial for id.
func (d *fakeDialer) addClient(id string, hasCred bool) *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeClient{id: id, hasCred: hasCred}
	d.clients[id] = append(d.clients[id], c)
	return c
}

func (d *fakeDialer) Dial(ctx context.Context, id string) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	d.dials[id]++
	queue := d.clients[id]
	if len(queue) == 0 {
		c := &fakeClient{id: id}
		return c, nil
	}
	c := queue[0]
	d.clients[id] = queue[1:]
	return c, nil
}

func (d *fakeDialer) dialCount(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[id]
}

// fakeRepo is an in-memory connection.Repository.
type fakeRepo struct {
	mu      sync.Mutex
	records map[string]connection.Record
	mirrors []mirrorCall
}

type mirrorCall struct {
	ID     string
	Status string
	Phone  string
}

func newFakeRepo(records ...connection.Record) *fakeRepo {
	r := &fakeRepo{records: make(map[string]connection.Record)}
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return r
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*connection.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, connection.ErrNotFound
	}
	return &rec, nil
}

func (r *fakeRepo) ListConnected(ctx context.Context) ([]connection.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []connection.Record
	for _, rec := range r.records {
		if rec.Status == connection.StatusConnected {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) MirrorStatus(ctx context.Context, id, status, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirrors = append(r.mirrors, mirrorCall{ID: id, Status: status, Phone: phone})
	if rec, ok := r.records[id]; ok {
		rec.Status = status
		if phone != "" {
			rec.Phone = phone
		}
		r.records[id] = rec
	}
	return nil
}

// fakeCreds is an in-memory creds.Store.
type fakeCreds struct {
	mu    sync.Mutex
	blobs map[string]bool
}

func newFakeCreds(ids ...string) *fakeCreds {
	c := &fakeCreds{blobs: make(map[string]bool)}
	for _, id := range ids {
		c.blobs[id] = true
	}
	return c
}

func (c *fakeCreds) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blobs[id]
}

func (c *fakeCreds) Path(id string) string { return "testdata/" + id + ".db" }

func (c *fakeCreds) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.blobs, id)
	return nil
}

// waitForStatus polls until the session for id reaches want.
func waitForStatus(t *testing.T, m *Manager, id string, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if st, ok := m.GetSessionStatus(id); ok && st == want {
			return
		}
		if time.Now().After(deadline) {
			st, ok := m.GetSessionStatus(id)
			t.Fatalf("session %s never reached %s (status=%v, registered=%v)", id, want, st, ok)
		}
		time.Sleep(time.Millisecond)
	}
}

// collectEvents drains events already delivered to the channel.
func collectEvents(ch <-chan Event, n int, timeout time.Duration) []Event {
	var out []Event
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
	return out
}
