package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var errFakeSend = errors.New("fake send failure")

var handleSeq atomic.Int64

// fakeHandle records frames instead of writing to a socket.
type fakeHandle struct {
	id      string
	userID  UserID
	failing bool
	panics  bool

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeHandle(userID UserID) *fakeHandle {
	return &fakeHandle{id: fmt.Sprintf("h-%d", handleSeq.Add(1)), userID: userID}
}

func (f *fakeHandle) ID() string     { return f.id }
func (f *fakeHandle) UserID() UserID { return f.userID }

func (f *fakeHandle) Send(frame []byte) error {
	if f.panics {
		panic("boom")
	}
	if f.failing {
		return errFakeSend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClientDisconnected
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeHandle) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type decodedFrame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (f *fakeHandle) received() []decodedFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]decodedFrame, 0, len(f.frames))
	for _, raw := range f.frames {
		var d decodedFrame
		if err := json.Unmarshal(raw, &d); err == nil {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeHandle) events() []EventType {
	var out []EventType
	for _, d := range f.received() {
		out = append(out, d.Event)
	}
	return out
}

func (f *fakeHandle) last(event EventType) (decodedFrame, bool) {
	frames := f.received()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Event == event {
			return frames[i], true
		}
	}
	return decodedFrame{}, false
}

// fakeAuth accepts credentials of the form "token-<id>".
type fakeAuth struct {
	names map[string]string
}

func (a *fakeAuth) Credential(r *http.Request) string {
	if c, err := r.Cookie("chatkaro-token"); err == nil {
		return c.Value
	}
	return ""
}

func (a *fakeAuth) Authenticate(_ context.Context, credential string) (Identity, error) {
	var id string
	if _, err := fmt.Sscanf(credential, "token-%s", &id); err != nil || id == "" {
		return Identity{}, errors.New("invalid token")
	}
	name := a.names[id]
	if name == "" {
		name = "user" + id
	}
	return Identity{ID: UserID(id), Name: name}, nil
}

// fakeStore records saved messages and can be told to fail.
type fakeStore struct {
	mu      sync.Mutex
	records []MessageRecord
	err     error
	calls   atomic.Int64
	block   chan struct{}
}

func (s *fakeStore) SaveMessage(ctx context.Context, rec MessageRecord) error {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) saved() []MessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MessageRecord(nil), s.records...)
}

type mirrorCall struct {
	UserID string
	Online bool
}

type fakeMirror struct {
	mu    sync.Mutex
	calls []mirrorCall
}

func (m *fakeMirror) SetUserOnline(_ context.Context, userID string) error {
	m.mu.Lock()
	m.calls = append(m.calls, mirrorCall{userID, true})
	m.mu.Unlock()
	return nil
}

func (m *fakeMirror) SetUserOffline(_ context.Context, userID string) error {
	m.mu.Lock()
	m.calls = append(m.calls, mirrorCall{userID, false})
	m.mu.Unlock()
	return nil
}

func (m *fakeMirror) snapshot() []mirrorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mirrorCall(nil), m.calls...)
}

func createTestHub(t *testing.T, store MessageStore, mirror PresenceMirror) *Hub {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}
	hub := NewHub(Config{PersistWorkers: 2, PersistQueueSize: 16}, &fakeAuth{}, store, mirror)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// connectFake drives a session to active over a fake handle.
func connectFake(t *testing.T, hub *Hub, userID UserID) (*Session, *fakeHandle) {
	t.Helper()
	s := hub.NewSession()
	require.NoError(t, s.Authenticate(context.Background(), "token-"+userID.String()))
	h := newFakeHandle(userID)
	require.NoError(t, s.Activate(h))
	return s, h
}

func frameJSON(t *testing.T, event EventType, data any, id string) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(Envelope{Event: event, Data: raw, ID: id})
	require.NoError(t, err)
	return b
}
