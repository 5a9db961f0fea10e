package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chatkaro-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type realtimeMessageEvent struct {
	ChatID  ChatID          `json:"chatId"`
	Message RealtimeMessage `json:"message"`
}

func decodeAck(t *testing.T, h *fakeHandle) ErrorEvent {
	t.Helper()
	f, ok := h.last(EventError)
	require.True(t, ok, "expected an ERROR frame")
	var ack ErrorEvent
	require.NoError(t, json.Unmarshal(f.Data, &ack))
	return ack
}

func TestSessionStateTransitions(t *testing.T) {
	hub := createTestHub(t, nil, nil)

	s := hub.NewSession()
	assert.Equal(t, StateConnecting, s.State())
	require.NoError(t, s.Authenticate(context.Background(), "token-1"))
	assert.Equal(t, StateAuthenticating, s.State())
	assert.Equal(t, UserID("1"), s.Identity().ID)

	assert.ErrorIs(t, s.Authenticate(context.Background(), "token-1"), ErrInvalidTransition)

	require.NoError(t, s.Activate(newFakeHandle("1")))
	assert.Equal(t, StateActive, s.State())
	assert.ErrorIs(t, s.Activate(newFakeHandle("1")), ErrInvalidTransition)

	s.Terminate()
	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, "terminated", s.State().String())
}

func TestSessionAuthenticateFailures(t *testing.T) {
	hub := createTestHub(t, nil, nil)

	s := hub.NewSession()
	assert.ErrorIs(t, s.Authenticate(context.Background(), ""), ErrMissingCredential)
	assert.Equal(t, StateTerminated, s.State())

	s = hub.NewSession()
	assert.Error(t, s.Authenticate(context.Background(), "garbage"))
	assert.Equal(t, StateTerminated, s.State())
	assert.ErrorIs(t, s.Activate(newFakeHandle("1")), ErrInvalidTransition)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestSessionActivateSendsConnectEvent(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	s, h := connectFake(t, hub, "7")

	f, ok := h.last(EventConnect)
	require.True(t, ok)
	var ev ConnectEvent
	require.NoError(t, json.Unmarshal(f.Data, &ev))
	assert.Equal(t, s.ID(), ev.SessionID)
	assert.Equal(t, UserID("7"), ev.UserID)
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestSessionIgnoresEventsBeforeActive(t *testing.T) {
	store := &fakeStore{}
	hub := createTestHub(t, store, nil)
	s := hub.NewSession()

	s.HandleEvent(frameJSON(t, EventNewMessage, NewMessageRequest{ChatID: "1", Members: []UserID{"1"}, Message: "hi"}, ""))
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, store.calls.Load())
}

func TestSessionNewMessageFanOut(t *testing.T) {
	store := &fakeStore{}
	hub := createTestHub(t, store, nil)
	hub.auth = &fakeAuth{names: map[string]string{"1": "alice"}}
	alice, aliceHandle := connectFake(t, hub, "1")
	_, bobHandle := connectFake(t, hub, "2")

	alice.HandleEvent(frameJSON(t, EventNewMessage, NewMessageRequest{
		ChatID:  "10",
		Members: []UserID{"1", "2", "3"},
		Message: "hello",
	}, "m-1"))

	for _, h := range []*fakeHandle{aliceHandle, bobHandle} {
		f, ok := h.last(EventNewMessage)
		require.True(t, ok)
		var ev realtimeMessageEvent
		require.NoError(t, json.Unmarshal(f.Data, &ev))
		assert.Equal(t, ChatID("10"), ev.ChatID)
		assert.Equal(t, "hello", ev.Message.Content)
		assert.Equal(t, UserID("1"), ev.Message.Sender.ID)
		assert.Equal(t, "alice", ev.Message.Sender.Name)
		assert.NotEmpty(t, ev.Message.ID)
		_, err := time.Parse(time.RFC3339Nano, ev.Message.CreatedAt)
		assert.NoError(t, err)

		_, ok = h.last(EventNewMessageAlert)
		assert.True(t, ok)
	}

	require.Eventually(t, func() bool { return len(store.saved()) == 1 }, time.Second, 5*time.Millisecond)
	rec := store.saved()[0]
	assert.Equal(t, ChatID("10"), rec.ChatID)
	assert.Equal(t, UserID("1"), rec.SenderID)
	assert.Equal(t, "hello", rec.Content)
}

func TestSessionNewMessageValidation(t *testing.T) {
	store := &fakeStore{}
	hub := createTestHub(t, store, nil)
	s, h := connectFake(t, hub, "1")

	s.HandleEvent(frameJSON(t, EventNewMessage, NewMessageRequest{ChatID: "1", Members: []UserID{"1"}, Message: "   "}, "m-2"))

	ack := decodeAck(t, h)
	assert.Equal(t, "m-2", ack.ID)
	assert.Equal(t, EventNewMessage, ack.Event)
	assert.Equal(t, response.CodeValidation, ack.Code)
	_, delivered := h.last(EventNewMessage)
	assert.False(t, delivered)
	assert.EqualValues(t, 0, store.calls.Load())
}

func TestSessionMalformedAndUnknownFrames(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	s, h := connectFake(t, hub, "1")

	s.HandleEvent([]byte("{not json"))
	assert.Equal(t, response.CodeInvalidMessage, decodeAck(t, h).Code)

	s.HandleEvent([]byte(`{"event":"DANCE","id":"x"}`))
	ack := decodeAck(t, h)
	assert.Equal(t, response.CodeUnknownEvent, ack.Code)
	assert.Equal(t, "x", ack.ID)

	s.HandleEvent([]byte(`{"event":"START_TYPING"}`))
	assert.Equal(t, response.CodeValidation, decodeAck(t, h).Code)
	assert.Equal(t, StateActive, s.State())
}

func TestSessionRejectsServerOnlyEvents(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	s, h := connectFake(t, hub, "1")
	_, peer := connectFake(t, hub, "2")

	s.HandleEvent(frameJSON(t, EventOnlineUsers, []UserID{"1", "2"}, "o-1"))
	ack := decodeAck(t, h)
	assert.Equal(t, response.CodeUnknownEvent, ack.Code)
	assert.Equal(t, "o-1", ack.ID)

	_, relayed := peer.last(EventOnlineUsers)
	assert.False(t, relayed)
}

func TestHubStopClosesDone(t *testing.T) {
	hub := NewHub(Config{PersistWorkers: 1, PersistQueueSize: 1}, &fakeAuth{}, &fakeStore{}, nil)
	go hub.Run()

	hub.Stop()
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestSessionTypingSkipsSender(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	alice, aliceHandle := connectFake(t, hub, "1")
	_, bobHandle := connectFake(t, hub, "2")

	alice.HandleEvent(frameJSON(t, EventStartTyping, TypingRequest{ChatID: "10", Members: []UserID{"1", "2"}}, ""))
	alice.HandleEvent(frameJSON(t, EventStopTyping, TypingRequest{ChatID: "10", Members: []UserID{"1", "2"}}, ""))

	assert.Equal(t, []EventType{EventConnect}, aliceHandle.events())
	assert.Equal(t, []EventType{EventConnect, EventStartTyping, EventStopTyping}, bobHandle.events())
}

func TestSessionPresenceUsesSessionIdentity(t *testing.T) {
	mirror := &fakeMirror{}
	hub := createTestHub(t, nil, mirror)
	alice, _ := connectFake(t, hub, "1")
	_, bobHandle := connectFake(t, hub, "2")

	alice.HandleEvent(frameJSON(t, EventChatJoined, PresenceRequest{UserID: "99", Members: []UserID{"2"}}, ""))

	assert.Equal(t, []UserID{"1"}, hub.OnlineUsers())
	assert.False(t, hub.IsOnline("99"))
	f, ok := bobHandle.last(EventOnlineUsers)
	require.True(t, ok)
	var online []UserID
	require.NoError(t, json.Unmarshal(f.Data, &online))
	assert.Equal(t, []UserID{"1"}, online)

	alice.HandleEvent(frameJSON(t, EventChatLeaved, PresenceRequest{Members: []UserID{"2"}}, ""))
	assert.Empty(t, hub.OnlineUsers())
	assert.Equal(t, []mirrorCall{{"1", true}, {"1", false}}, mirror.snapshot())
}

func TestSessionTerminateClearsStateAndNotifies(t *testing.T) {
	mirror := &fakeMirror{}
	hub := createTestHub(t, nil, mirror)
	alice, _ := connectFake(t, hub, "1")
	_, bobHandle := connectFake(t, hub, "2")
	alice.HandleEvent(frameJSON(t, EventChatJoined, PresenceRequest{Members: []UserID{"1"}}, ""))

	alice.Terminate()

	assert.Empty(t, hub.registry.Resolve([]UserID{"1"}))
	assert.False(t, hub.IsOnline("1"))
	f, ok := bobHandle.last(EventOnlineUsers)
	require.True(t, ok)
	var online []UserID
	require.NoError(t, json.Unmarshal(f.Data, &online))
	assert.Empty(t, online)

	calls := mirror.snapshot()
	assert.Equal(t, mirrorCall{"1", false}, calls[len(calls)-1])

	alice.Terminate()
	assert.Len(t, mirror.snapshot(), len(calls))
}

func TestSessionReconnectSupersedesPrevious(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	old, oldHandle := connectFake(t, hub, "1")
	old.HandleEvent(frameJSON(t, EventChatJoined, PresenceRequest{}, ""))
	_, newHandle := connectFake(t, hub, "1")

	assert.True(t, oldHandle.isClosed())
	assert.False(t, newHandle.isClosed())

	old.Terminate()
	cur, ok := hub.registry.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, newHandle.ID(), cur.ID())
	assert.True(t, hub.IsOnline("1"))
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestSupersededSessionCannotRestorePresence(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	old, oldHandle := connectFake(t, hub, "1")
	fresh, _ := connectFake(t, hub, "1")
	_, peer := connectFake(t, hub, "2")

	fresh.Terminate()
	old.HandleEvent(frameJSON(t, EventChatJoined, PresenceRequest{Members: []UserID{"2"}}, ""))
	old.HandleEvent(frameJSON(t, EventNewMessage, NewMessageRequest{ChatID: "3", Members: []UserID{"2"}, Message: "late"}, ""))
	old.Terminate()

	_, ok := hub.registry.Lookup("1")
	assert.False(t, ok)
	assert.False(t, hub.IsOnline("1"))
	assert.Equal(t, 1, hub.ConnectionCount())

	_, gotMessage := peer.last(EventNewMessage)
	assert.False(t, gotMessage)
	_, acked := oldHandle.last(EventError)
	assert.False(t, acked)
}

func TestSessionPersistFailureAcksOrigin(t *testing.T) {
	store := &fakeStore{err: errors.New("insert failed")}
	hub := createTestHub(t, store, nil)
	s, h := connectFake(t, hub, "1")

	s.HandleEvent(frameJSON(t, EventNewMessage, NewMessageRequest{ChatID: "3", Members: []UserID{"1"}, Message: "hi"}, "m-9"))

	_, delivered := h.last(EventNewMessage)
	assert.True(t, delivered)
	require.Eventually(t, func() bool {
		_, ok := h.last(EventError)
		return ok
	}, time.Second, 5*time.Millisecond)

	ack := decodeAck(t, h)
	assert.Equal(t, response.CodePersistFailed, ack.Code)
	assert.Equal(t, "m-9", ack.ID)
	assert.Eventually(t, func() bool { return hub.MetricsSnapshot().PersistFailures == 1 }, time.Second, 5*time.Millisecond)
}
