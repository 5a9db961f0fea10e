package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"chatkaro-service/pkg/response"

	"github.com/google/uuid"
)

// SessionState is the lifecycle position of one connection.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateActive
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrMissingCredential = errors.New("missing credential")
)

// Session drives one connection from handshake to teardown.
type Session struct {
	id       string
	hub      *Hub
	state    atomic.Int32
	identity Identity
	handle   Handle
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) Identity() Identity {
	return s.identity
}

func (s *Session) transition(from, to SessionState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// Authenticate verifies the credential and binds the identity. On failure
// the session is terminated.
func (s *Session) Authenticate(ctx context.Context, credential string) error {
	if !s.transition(StateConnecting, StateAuthenticating) {
		return ErrInvalidTransition
	}

	if credential == "" {
		s.state.Store(int32(StateTerminated))
		return ErrMissingCredential
	}

	identity, err := s.hub.auth.Authenticate(ctx, credential)
	if err != nil {
		s.state.Store(int32(StateTerminated))
		return err
	}
	s.identity = identity
	return nil
}

// Activate registers h for the session's user. A handle previously
// registered for the same user is closed.
func (s *Session) Activate(h Handle) error {
	if !s.transition(StateAuthenticating, StateActive) {
		return ErrInvalidTransition
	}
	s.handle = h

	if prev := s.hub.registry.Register(s.identity.ID, h); prev != nil {
		slog.Info("Closing superseded connection", "userID", s.identity.ID, "clientID", prev.ID())
		if err := prev.Close(); err != nil {
			slog.Debug("Error closing superseded connection", "clientID", prev.ID(), "error", err)
		}
	}

	slog.Info("Session active", "sessionID", s.id, "clientID", h.ID(), "userID", s.identity.ID)
	if err := s.hub.router.SendTo(h, EventConnect, ConnectEvent{SessionID: s.id, UserID: s.identity.ID}); err != nil {
		slog.Debug("Failed to send connect event", "clientID", h.ID(), "error", err)
	}
	return nil
}

// Terminate tears the session down. Only the session that still owns the
// registry mapping clears presence and announces the change.
func (s *Session) Terminate() {
	prev := SessionState(s.state.Swap(int32(StateTerminated)))
	if prev != StateActive {
		return
	}

	userID := s.identity.ID
	if !s.hub.registry.UnregisterHandle(userID, s.handle) {
		slog.Debug("Superseded session terminated", "sessionID", s.id, "userID", userID)
		return
	}

	s.hub.presence.MarkOffline(userID)
	s.hub.mirrorPresence(userID, false)
	report := s.hub.router.Broadcast(s.handle, EventOnlineUsers, s.hub.presence.Snapshot())
	slog.Info("Session terminated", "sessionID", s.id, "userID", userID, "notified", report.Delivered)
}

// HandleEvent processes one inbound frame. Frames are ignored unless the
// session is active and still owns the user's registry mapping.
func (s *Session) HandleEvent(raw []byte) {
	if s.State() != StateActive {
		return
	}
	if !s.owns() {
		slog.Debug("Dropping frame from superseded session", "sessionID", s.id, "userID", s.identity.ID)
		return
	}

	env, err := DecodeEnvelope(raw)
	if err != nil {
		slog.Debug("Invalid frame", "userID", s.identity.ID, "error", err)
		s.ack(Envelope{}, response.CodeInvalidMessage, response.Msg(response.CodeInvalidMessage))
		return
	}

	if !env.Event.IsInbound() {
		s.ack(env, response.CodeUnknownEvent, fmt.Sprintf("unknown event %q", env.Event))
		return
	}

	switch env.Event {
	case EventNewMessage:
		s.onNewMessage(env)
	case EventStartTyping, EventStopTyping:
		s.onTyping(env)
	case EventChatJoined:
		s.onPresence(env, true)
	case EventChatLeaved:
		s.onPresence(env, false)
	}
}

func (s *Session) onNewMessage(env Envelope) {
	var req NewMessageRequest
	if err := decodeData(env, &req); err != nil {
		s.ack(env, response.CodeValidation, err.Error())
		return
	}
	content := strings.TrimSpace(req.Message)
	if req.ChatID == "" || len(req.Members) == 0 || content == "" {
		s.ack(env, response.CodeValidation, "chatId, members and message are required")
		return
	}

	now := time.Now().UTC()
	view := RealtimeMessage{
		ID:        uuid.NewString(),
		Content:   req.Message,
		Sender:    SenderSummary{ID: s.identity.ID, Name: s.identity.Name},
		Chat:      req.ChatID,
		CreatedAt: now.Format(time.RFC3339Nano),
	}

	s.hub.router.Dispatch(req.Members, EventNewMessage, NewMessageEvent{ChatID: req.ChatID, Message: view})
	s.hub.router.Dispatch(req.Members, EventNewMessageAlert, ChatEvent{ChatID: req.ChatID})

	rec := MessageRecord{
		RealtimeID: view.ID,
		ChatID:     req.ChatID,
		SenderID:   s.identity.ID,
		Content:    req.Message,
		CreatedAt:  now,
	}
	if err := s.hub.persister.Enqueue(s.hub.ctx, rec, s.handle, env.ID); err != nil {
		slog.Error("Failed to queue message for persistence", "chatID", req.ChatID, "userID", s.identity.ID, "error", err)
		s.hub.metrics.RecordPersist(err)
		s.ack(env, response.CodePersistFailed, response.Msg(response.CodePersistFailed))
	}
}

func (s *Session) onTyping(env Envelope) {
	var req TypingRequest
	if err := decodeData(env, &req); err != nil {
		s.ack(env, response.CodeValidation, err.Error())
		return
	}
	if req.ChatID == "" {
		s.ack(env, response.CodeValidation, "chatId is required")
		return
	}

	s.hub.router.DispatchExcept(req.Members, s.handle, env.Event, ChatEvent{ChatID: req.ChatID})
}

func (s *Session) onPresence(env Envelope, online bool) {
	var req PresenceRequest
	if err := decodeData(env, &req); err != nil {
		s.ack(env, response.CodeValidation, err.Error())
		return
	}

	userID := s.identity.ID
	if online {
		s.hub.presence.MarkOnline(userID)
	} else {
		s.hub.presence.MarkOffline(userID)
	}
	// A newer session may have torn down in between
	if online && !s.owns() {
		if _, live := s.hub.registry.Lookup(userID); !live {
			s.hub.presence.MarkOffline(userID)
		}
		return
	}
	s.hub.mirrorPresence(userID, online)

	s.hub.router.Dispatch(req.Members, EventOnlineUsers, s.hub.presence.Snapshot())
}

// owns reports whether the registry still maps the user to this session's handle.
func (s *Session) owns() bool {
	h, ok := s.hub.registry.Lookup(s.identity.ID)
	return ok && h.ID() == s.handle.ID()
}

func (s *Session) ack(env Envelope, code, message string) {
	if s.handle == nil {
		return
	}
	err := s.hub.router.SendTo(s.handle, EventError, ErrorEvent{
		ID:      env.ID,
		Event:   env.Event,
		Code:    code,
		Message: message,
	})
	if err != nil {
		slog.Debug("Failed to send error ack", "clientID", s.handle.ID(), "code", code, "error", err)
	}
}

func decodeData(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s requires a data payload", env.Event)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.Event, err)
	}
	return nil
}
