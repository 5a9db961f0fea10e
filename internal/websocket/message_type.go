package websocket

import (
	"encoding/json"
	"fmt"
)

// EventType is the event name carried by every frame. The names are part of
// the client compatibility surface.
type EventType string

const (
	// Connection lifecycle
	EventConnect    EventType = "connect"
	EventDisconnect EventType = "disconnect"

	// Chat events
	EventNewMessage      EventType = "NEW_MESSAGE"
	EventNewMessageAlert EventType = "NEW_MESSAGE_ALERT"
	EventStartTyping     EventType = "START_TYPING"
	EventStopTyping      EventType = "STOP_TYPING"
	EventChatJoined      EventType = "CHAT_JOINED"
	EventChatLeaved      EventType = "CHAT_LEAVED"
	EventOnlineUsers     EventType = "ONLINE_USERS"

	// Emitted from REST handlers
	EventAlert        EventType = "ALERT"
	EventRefetchChats EventType = "REFETCH_CHATS"
	EventNewRequest   EventType = "NEW_REQUEST"

	// Per-event error acknowledgement
	EventError EventType = "ERROR"
)

func (e EventType) String() string {
	return string(e)
}

// IsInbound reports whether clients may send this event.
func (e EventType) IsInbound() bool {
	switch e {
	case EventNewMessage, EventStartTyping, EventStopTyping, EventChatJoined, EventChatLeaved:
		return true
	default:
		return false
	}
}

// Envelope is the decoded form of an inbound frame.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	// ID is an optional client token echoed back in ERROR acks
	ID string `json:"id,omitempty"`
}

type frame struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// EncodeFrame renders one outbound frame.
func EncodeFrame(event EventType, payload any) ([]byte, error) {
	b, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", event, err)
	}
	return b, nil
}

// DecodeEnvelope parses an inbound frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("missing event name")
	}
	return env, nil
}

/** -------------------- Inbound payloads -------------------- */

type NewMessageRequest struct {
	ChatID  ChatID   `json:"chatId"`
	Members []UserID `json:"members"`
	Message string   `json:"message"`
}

type TypingRequest struct {
	ChatID  ChatID   `json:"chatId"`
	Members []UserID `json:"members"`
}

// PresenceRequest carries the audience for a presence change. The declared
// UserID is ignored in favour of the authenticated identity.
type PresenceRequest struct {
	UserID  UserID   `json:"userId,omitempty"`
	Members []UserID `json:"members"`
}

/** -------------------- Outbound payloads -------------------- */

type SenderSummary struct {
	ID   UserID `json:"_id"`
	Name string `json:"name"`
}

// RealtimeMessage is the delivered view of a message; its id is not the database id.
type RealtimeMessage struct {
	ID        string        `json:"_id"`
	Content   string        `json:"content"`
	Sender    SenderSummary `json:"sender"`
	Chat      ChatID        `json:"chat"`
	CreatedAt string        `json:"createdAt"`
}

type NewMessageEvent struct {
	ChatID  ChatID `json:"chatId"`
	Message any    `json:"message"`
}

// ChatEvent is the payload of NEW_MESSAGE_ALERT and the typing events.
type ChatEvent struct {
	ChatID ChatID `json:"chatId"`
}

type ConnectEvent struct {
	SessionID string `json:"sessionId"`
	UserID    UserID `json:"userId"`
}

type ErrorEvent struct {
	ID      string    `json:"id,omitempty"`
	Event   EventType `json:"event,omitempty"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// AlertEvent is the ALERT payload for membership changes tied to a chat.
type AlertEvent struct {
	Message string `json:"message"`
	ChatID  ChatID `json:"chatId"`
}
