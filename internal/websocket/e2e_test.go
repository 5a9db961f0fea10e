package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Cookie", "chatkaro-token="+token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	readUntil(t, conn, EventConnect)
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, event EventType) decodedFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var f decodedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event == event {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, event EventType, data any) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frameJSON(t, event, data, "")))
}

func TestServeWSRejectsMissingCredential(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	url := startTestServer(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestEndToEndMessageDelivery(t *testing.T) {
	store := &fakeStore{}
	hub := createTestHub(t, store, nil)
	url := startTestServer(t, hub)

	alice := dial(t, url, "token-1")
	bob := dial(t, url, "token-2")
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 2 }, time.Second, 5*time.Millisecond)

	send(t, alice, EventNewMessage, NewMessageRequest{ChatID: "5", Members: []UserID{"1", "2", "3"}, Message: "hey"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		f := readUntil(t, conn, EventNewMessage)
		var ev realtimeMessageEvent
		require.NoError(t, json.Unmarshal(f.Data, &ev))
		assert.Equal(t, "hey", ev.Message.Content)
		assert.Equal(t, UserID("1"), ev.Message.Sender.ID)
		readUntil(t, conn, EventNewMessageAlert)
	}

	assert.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestEndToEndDisconnectBroadcastsPresence(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	url := startTestServer(t, hub)

	alice := dial(t, url, "token-1")
	bob := dial(t, url, "token-2")
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 2 }, time.Second, 5*time.Millisecond)

	send(t, alice, EventChatJoined, PresenceRequest{Members: []UserID{"1", "2"}})
	readUntil(t, bob, EventOnlineUsers)

	alice.Close()

	f := readUntil(t, bob, EventOnlineUsers)
	var online []UserID
	require.NoError(t, json.Unmarshal(f.Data, &online))
	assert.Empty(t, online)
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestEndToEndReconnectClosesOldConnection(t *testing.T) {
	hub := createTestHub(t, nil, nil)
	url := startTestServer(t, hub)

	first := dial(t, url, "token-1")
	second := dial(t, url, "token-1")

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	send(t, second, EventStartTyping, TypingRequest{ChatID: "1", Members: []UserID{"1"}})
	assert.Equal(t, 1, hub.ConnectionCount())
	h, ok := hub.registry.Lookup("1")
	require.True(t, ok)
	assert.NotNil(t, h)
}
