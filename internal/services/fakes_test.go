package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"sort"
	"strings"
	"sync"
	"time"

	"chatkaro-service/internal/adapters/kafka"
	"chatkaro-service/internal/adapters/storage"
	"chatkaro-service/internal/config"
	"chatkaro-service/internal/models"
	"chatkaro-service/internal/repositories/postgres"
	"chatkaro-service/internal/websocket"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the gorm repositories.
type memStore struct {
	mu       sync.Mutex
	nextID   uint
	users    map[uint]*models.User
	chats    map[uint]*models.Chat
	messages map[uint]*models.Message
	requests map[uint]*models.FriendRequest
	failMsg  error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uint]*models.User{},
		chats:    map[uint]*models.Chat{},
		messages: map[uint]*models.Message{},
		requests: map[uint]*models.FriendRequest{},
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(name string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	u := &models.User{Name: name, Username: strings.ToLower(name), Password: string(hash), AvatarURL: "http://blob/" + name}
	u.ID = m.id()
	m.users[u.ID] = u
	return u
}

func (m *memStore) addChat(name string, group bool, creator *uint, members ...*models.User) *models.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Chat{Name: name, GroupChat: group, CreatorID: creator, Members: members}
	c.ID = m.id()
	m.chats[c.ID] = c
	return c
}

func (m *memStore) user(id uint) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memStore) chat(id uint) *models.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chats[id]
}

// hydrate replaces id-only members with stored users.
func (m *memStore) hydrate(members []*models.User) []*models.User {
	out := make([]*models.User, 0, len(members))
	for _, mem := range members {
		if u, ok := m.users[mem.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (m *memStore) copyChat(c *models.Chat) *models.Chat {
	cp := *c
	cp.Members = append([]*models.User(nil), c.Members...)
	return &cp
}

type memUsers struct{ *memStore }

func (r memUsers) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = r.id()
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r memUsers) FindByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memUsers) FindByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memUsers) Search(_ context.Context, name string, excludeIDs []uint) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	skip := map[uint]bool{}
	for _, id := range excludeIDs {
		skip[id] = true
	}
	var out []models.User
	for _, u := range r.users {
		if !skip[u.ID] && strings.Contains(strings.ToLower(u.Name), strings.ToLower(name)) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memChats struct{ *memStore }

func (r memChats) Create(_ context.Context, chat *models.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat.ID = r.id()
	chat.Members = r.hydrate(chat.Members)
	r.chats[chat.ID] = r.copyChat(chat)
	return nil
}

func (r memChats) FindByID(_ context.Context, id uint) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chats[id]; ok {
		return r.copyChat(c), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memChats) FindByMember(_ context.Context, userID uint, filter postgres.ChatFilter) ([]models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Chat
	for _, c := range r.chats {
		if !c.HasMember(userID) {
			continue
		}
		if filter.GroupChat != nil && c.GroupChat != *filter.GroupChat {
			continue
		}
		if filter.CreatorID != nil && !c.IsCreator(*filter.CreatorID) {
			continue
		}
		out = append(out, *r.copyChat(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memChats) CountByMember(ctx context.Context, userID uint, groupChat bool) (int64, error) {
	chats, _ := r.FindByMember(ctx, userID, postgres.ChatFilter{GroupChat: &groupChat})
	return int64(len(chats)), nil
}

func (r memChats) Save(_ context.Context, chat *models.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[chat.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := r.copyChat(chat)
	cp.Members = r.hydrate(cp.Members)
	r.chats[chat.ID] = cp
	return nil
}

func (r memChats) Delete(_ context.Context, chatID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, chatID)
	return nil
}

type memMessages struct{ *memStore }

func (r memMessages) Create(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMsg != nil {
		return r.failMsg
	}
	msg.ID = r.id()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r memMessages) byChat(chatID uint) []models.Message {
	var out []models.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			cp := *m
			if u, ok := r.users[m.SenderID]; ok {
				cp.Sender = *u
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r memMessages) FindByChat(_ context.Context, chatID uint, offset, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.byChat(chatID)
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (r memMessages) CountByChat(_ context.Context, chatID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byChat(chatID))), nil
}

func (r memMessages) AttachmentIDsByChat(_ context.Context, chatID uint) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, m := range r.byChat(chatID) {
		for _, a := range m.Attachments {
			ids = append(ids, a.PublicID)
		}
	}
	return ids, nil
}

func (r memMessages) DeleteByChat(_ context.Context, chatID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.messages {
		if m.ChatID == chatID {
			delete(r.messages, id)
		}
	}
	return nil
}

type memRequests struct{ *memStore }

func (r memRequests) Create(_ context.Context, req *models.FriendRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.ID = r.id()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r memRequests) FindByID(_ context.Context, id uint) (*models.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *req
	cp.Sender = *r.users[req.SenderID]
	cp.Receiver = *r.users[req.ReceiverID]
	return &cp, nil
}

func (r memRequests) FindBetween(_ context.Context, a, b uint) (*models.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if (req.SenderID == a && req.ReceiverID == b) || (req.SenderID == b && req.ReceiverID == a) {
			cp := *req
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memRequests) FindByReceiver(_ context.Context, receiverID uint) ([]models.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FriendRequest
	for _, req := range r.requests {
		if req.ReceiverID == receiverID {
			cp := *req
			cp.Sender = *r.users[req.SenderID]
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r memRequests) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, id)
	return nil
}

type fakeBlobs struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	uploadErr error
}

func (b *fakeBlobs) Upload(_ context.Context, folder string, file *multipart.FileHeader) (storage.Object, error) {
	if b.uploadErr != nil {
		return storage.Object{}, b.uploadErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("%s/%d-%s", folder, len(b.uploaded)+1, file.Filename)
	b.uploaded = append(b.uploaded, id)
	return storage.Object{PublicID: id, URL: "http://blob/" + id}, nil
}

func (b *fakeBlobs) UploadMany(ctx context.Context, folder string, files []*multipart.FileHeader) ([]storage.Object, error) {
	out := make([]storage.Object, 0, len(files))
	for _, f := range files {
		obj, err := b.Upload(ctx, folder, f)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (b *fakeBlobs) Delete(_ context.Context, ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, ids...)
}

type emitted struct {
	Event    websocket.EventType
	Audience []websocket.UserID
	Payload  any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *fakeEmitter) Emit(event websocket.EventType, audience []websocket.UserID, payload any) websocket.DeliveryReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{event, audience, payload})
	return websocket.DeliveryReport{Event: event, Targets: len(audience)}
}

func (e *fakeEmitter) find(event websocket.EventType) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.MessageCreatedEvent
	err    error
}

func (p *fakePublisher) PublishMessageCreated(_ context.Context, evt kafka.MessageCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

var errBoom = errors.New("boom")

func testTokens() *TokenService {
	return NewTokenService(config.JWTConfig{Secret: "test-secret", ExpirationTime: time.Hour}, "chatkaro-token")
}

type fixture struct {
	store     *memStore
	blobs     *fakeBlobs
	emitter   *fakeEmitter
	publisher *fakePublisher
	users     *UserService
	chats     *ChatService
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{store: store, blobs: &fakeBlobs{}, emitter: &fakeEmitter{}, publisher: &fakePublisher{}}
	f.users = NewUserService(memUsers{store}, memChats{store}, memRequests{store}, f.blobs, testTokens(), f.emitter)
	f.chats = NewChatService(memChats{store}, memMessages{store}, memUsers{store}, f.blobs, f.emitter, f.publisher)
	return f
}

func uids(ids ...uint) []websocket.UserID {
	return websocket.FromUints(ids)
}
