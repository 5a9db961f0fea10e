package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatkaro-service/internal/models"
	"chatkaro-service/pkg/response"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config tunes the realtime hub.
type Config struct {
	SendBufferSize   int
	MaxMessageSize   int64
	PersistWorkers   int
	PersistQueueSize int
	AllowedOrigins   []string
	MetricsHistory   int
}

// Authenticator resolves the handshake credential to an identity.
type Authenticator interface {
	Credential(r *http.Request) string
	Authenticate(ctx context.Context, credential string) (Identity, error)
}

// PresenceMirror copies presence changes to an external store.
type PresenceMirror interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

// Hub owns the connection registry, presence set and message pipeline.
type Hub struct {
	cfg       Config
	auth      Authenticator
	mirror    PresenceMirror
	registry  *Registry
	presence  *PresenceSet
	metrics   *Metrics
	router    *Router
	persister *Persister
	upgrader  websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub builds a hub. mirror may be nil.
func NewHub(cfg Config, auth Authenticator, store MessageStore, mirror PresenceMirror) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	metrics := NewMetrics(cfg.MetricsHistory)

	h := &Hub{
		cfg:       cfg,
		auth:      auth,
		mirror:    mirror,
		registry:  registry,
		presence:  NewPresenceSet(),
		metrics:   metrics,
		router:    NewRouter(registry, metrics),
		persister: NewPersister(store, cfg.PersistWorkers, cfg.PersistQueueSize, metrics),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run reports persistence failures until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)
	slog.Info("WebSocket hub started")

	for {
		select {
		case failure, ok := <-h.persister.Failures():
			if !ok {
				return
			}
			h.reportFailure(failure)
		case <-h.ctx.Done():
			slog.Info("WebSocket hub stopping")
			return
		}
	}
}

// Stop closes every connection and drains the persistence queue.
func (h *Hub) Stop() {
	h.cancel()

	for _, c := range h.registry.Handles() {
		c.Close()
	}

	h.persister.Stop()
	for failure := range h.persister.Failures() {
		slog.Error("Message lost during shutdown", "chatID", failure.Record.ChatID, "userID", failure.Record.SenderID, "error", failure.Err)
	}
	slog.Info("WebSocket hub stopped", "metrics", h.metrics.Snapshot())
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) reportFailure(f PersistFailure) {
	slog.Error("Failed to persist message", "chatID", f.Record.ChatID, "userID", f.Record.SenderID, "realtimeID", f.Record.RealtimeID, "error", f.Err)
	if f.Origin == nil {
		return
	}
	current, ok := h.registry.Lookup(f.Origin.UserID())
	if !ok || current.ID() != f.Origin.ID() {
		return
	}

	err := h.router.SendTo(f.Origin, EventError, ErrorEvent{
		ID:      f.EventID,
		Event:   EventNewMessage,
		Code:    response.CodePersistFailed,
		Message: response.Msg(response.CodePersistFailed),
	})
	if err != nil {
		slog.Debug("Failed to deliver persistence error", "clientID", f.Origin.ID(), "error", err)
	}
}

// NewSession starts a session in the connecting state.
func (h *Hub) NewSession() *Session {
	return &Session{id: uuid.NewString(), hub: h}
}

// ServeWS authenticates the request, then upgrades it and starts the pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	session := h.NewSession()
	if err := session.Authenticate(r.Context(), h.auth.Credential(r)); err != nil {
		slog.Warn("WebSocket authentication failed", "remoteAddr", r.RemoteAddr, "error", err)
		writeUnauthorized(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "userID", session.identity.ID, "error", err)
		return
	}

	client := NewClient(conn, session.identity.ID, h.cfg.SendBufferSize, h.cfg.MaxMessageSize)
	go client.writePump()

	if err := session.Activate(client); err != nil {
		slog.Error("Failed to activate session", "userID", session.identity.ID, "error", err)
		client.Close()
		return
	}

	go client.readPump(session)
}

// Emit delivers a server-originated event to the live members of audience.
func (h *Hub) Emit(event EventType, audience []UserID, payload any) DeliveryReport {
	return h.router.Dispatch(audience, event, payload)
}

func (h *Hub) OnlineUsers() []UserID {
	return h.presence.Snapshot()
}

func (h *Hub) IsOnline(userID UserID) bool {
	return h.presence.Contains(userID)
}

func (h *Hub) ConnectionCount() int {
	return h.registry.Len()
}

// RecentDispatches returns up to n fan-outs, newest first.
func (h *Hub) RecentDispatches(n int) []DispatchMetric {
	return h.metrics.Recent(n)
}

func (h *Hub) MetricsSnapshot() MetricsSnapshot {
	return h.metrics.Snapshot()
}

func (h *Hub) mirrorPresence(userID UserID, online bool) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var err error
	if online {
		err = h.mirror.SetUserOnline(ctx, userID.String())
	} else {
		err = h.mirror.SetUserOffline(ctx, userID.String())
	}
	if err != nil {
		slog.Warn("Failed to mirror presence", "userID", userID, "online", online, "error", err)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	err := json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: response.Msg(response.CodeUnauthenticated),
	})
	if err != nil {
		slog.Debug("Failed to write unauthorized response", "error", err)
	}
}
