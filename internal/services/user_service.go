package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"

	"chatkaro-service/internal/models"
	"chatkaro-service/internal/repositories/postgres"
	"chatkaro-service/internal/websocket"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const avatarFolder = "avatars"

type UserService struct {
	users    UserRepository
	chats    ChatRepository
	requests RequestRepository
	blobs    BlobStore
	tokens   *TokenService
	emitter  EventEmitter
}

func NewUserService(users UserRepository, chats ChatRepository, requests RequestRepository, blobs BlobStore, tokens *TokenService, emitter EventEmitter) *UserService {
	return &UserService{
		users:    users,
		chats:    chats,
		requests: requests,
		blobs:    blobs,
		tokens:   tokens,
		emitter:  emitter,
	}
}

// Register uploads the avatar, creates the user and issues a token.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest, avatar *multipart.FileHeader) (*models.User, string, error) {
	if avatar == nil {
		return nil, "", ErrAvatarRequired
	}

	username := strings.TrimSpace(req.Username)
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, "", ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("failed to check username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	obj, err := s.blobs.Upload(ctx, avatarFolder, avatar)
	if err != nil {
		return nil, "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	user := &models.User{
		Name:      strings.TrimSpace(req.Name),
		Username:  username,
		Password:  string(hashed),
		Bio:       req.Bio,
		AvatarID:  obj.PublicID,
		AvatarURL: obj.URL,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.blobs.Delete(ctx, []string{obj.PublicID})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrUsernameTaken
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", err
	}
	slog.Info("User registered", "userID", user.ID, "username", user.Username)
	return user, token, nil
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) Profile(ctx context.Context, userID uint) (*models.ProfileResponse, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	chats, err := s.chats.CountByMember(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	groups, err := s.chats.CountByMember(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	return &models.ProfileResponse{Success: true, User: user.Response(), Chats: chats, Groups: groups}, nil
}

// Search finds users by name, skipping the caller and anyone already in a
// direct chat with them.
func (s *UserService) Search(ctx context.Context, userID uint, name string) ([]models.UserSummary, error) {
	direct, err := s.chats.FindByMember(ctx, userID, postgres.ChatFilter{GroupChat: boolPtr(false)})
	if err != nil {
		return nil, err
	}

	exclude := []uint{userID}
	for i := range direct {
		exclude = append(exclude, direct[i].MemberIDs()...)
	}

	users, err := s.users.Search(ctx, strings.TrimSpace(name), exclude)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func (s *UserService) SendRequest(ctx context.Context, senderID, receiverID uint) error {
	if senderID == receiverID {
		return ErrSelfRequest
	}
	if _, err := s.findUser(ctx, receiverID); err != nil {
		return err
	}

	if _, err := s.requests.FindBetween(ctx, senderID, receiverID); err == nil {
		return ErrRequestAlreadySent
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	req := &models.FriendRequest{Status: models.RequestStatusPending, SenderID: senderID, ReceiverID: receiverID}
	if err := s.requests.Create(ctx, req); err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	s.emitter.Emit(websocket.EventNewRequest, websocket.FromUints([]uint{receiverID}), nil)
	return nil
}

// AcceptRequest answers a pending request. Accepting creates the direct chat
// between the two users. It returns the sender id.
func (s *UserService) AcceptRequest(ctx context.Context, userID, requestID uint, accept bool) (uint, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRequestNotFound
		}
		return 0, err
	}
	if req.ReceiverID != userID {
		return 0, ErrNotReceiver
	}

	if !accept {
		if err := s.requests.Delete(ctx, req.ID); err != nil {
			return 0, err
		}
		return req.SenderID, nil
	}

	chat := &models.Chat{
		Name:    fmt.Sprintf("%s-%s", req.Sender.Name, req.Receiver.Name),
		Members: []*models.User{{Model: gorm.Model{ID: req.SenderID}}, {Model: gorm.Model{ID: req.ReceiverID}}},
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return 0, fmt.Errorf("failed to create chat: %w", err)
	}
	if err := s.requests.Delete(ctx, req.ID); err != nil {
		slog.Warn("Failed to delete accepted request", "requestID", req.ID, "error", err)
	}

	s.emitter.Emit(websocket.EventRefetchChats, websocket.FromUints([]uint{req.SenderID, req.ReceiverID}), nil)
	return req.SenderID, nil
}

func (s *UserService) Notifications(ctx context.Context, userID uint) ([]models.NotificationResponse, error) {
	reqs, err := s.requests.FindByReceiver(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.NotificationResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, models.NotificationResponse{ID: reqs[i].ID, Sender: reqs[i].Sender.Summary()})
	}
	return out, nil
}

// Friends lists the other member of each direct chat. With chatID set, friends
// already in that chat are left out.
func (s *UserService) Friends(ctx context.Context, userID uint, chatID *uint) ([]models.UserSummary, error) {
	direct, err := s.chats.FindByMember(ctx, userID, postgres.ChatFilter{GroupChat: boolPtr(false)})
	if err != nil {
		return nil, err
	}

	var skip map[uint]bool
	if chatID != nil {
		chat, err := s.chats.FindByID(ctx, *chatID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrChatNotFound
			}
			return nil, err
		}
		skip = make(map[uint]bool, len(chat.Members))
		for _, id := range chat.MemberIDs() {
			skip[id] = true
		}
	}

	friends := make([]models.UserSummary, 0, len(direct))
	for i := range direct {
		for _, other := range direct[i].OtherMembers(userID) {
			if skip[other.ID] {
				continue
			}
			friends = append(friends, other.Summary())
		}
	}
	return friends, nil
}

func (s *UserService) findUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func summaries(users []models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
