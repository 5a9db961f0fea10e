package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"mime/multipart"
	"strings"

	"chatkaro-service/internal/adapters/kafka"
	"chatkaro-service/internal/models"
	"chatkaro-service/internal/repositories/postgres"
	"chatkaro-service/internal/websocket"

	"gorm.io/gorm"
)

const (
	attachmentFolder = "attachments"
	maxAttachments   = 5
)

type ChatService struct {
	chats     ChatRepository
	messages  MessageRepository
	users     UserRepository
	blobs     BlobStore
	emitter   EventEmitter
	publisher EventPublisher
}

// NewChatService builds the service. publisher may be nil.
func NewChatService(chats ChatRepository, messages MessageRepository, users UserRepository, blobs BlobStore, emitter EventEmitter, publisher EventPublisher) *ChatService {
	return &ChatService{
		chats:     chats,
		messages:  messages,
		users:     users,
		blobs:     blobs,
		emitter:   emitter,
		publisher: publisher,
	}
}

// NewGroup creates a group owned by creatorID with the given other members.
func (s *ChatService) NewGroup(ctx context.Context, creatorID uint, req *models.NewGroupRequest) (*models.Chat, error) {
	others := uniqueIDs(req.Members, creatorID)
	if len(others) < models.GroupMinMembers-1 || len(others) > models.GroupMaxMembers-1 {
		return nil, ErrInvalidGroupMembers
	}

	users, err := s.users.FindByIDs(ctx, others)
	if err != nil {
		return nil, err
	}
	if len(users) != len(others) {
		return nil, ErrUserNotFound
	}

	members := make([]*models.User, 0, len(others)+1)
	for _, id := range others {
		members = append(members, &models.User{Model: gorm.Model{ID: id}})
	}
	members = append(members, &models.User{Model: gorm.Model{ID: creatorID}})

	chat := &models.Chat{
		Name:      strings.TrimSpace(req.Name),
		GroupChat: true,
		CreatorID: &creatorID,
		Members:   members,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	all := websocket.FromUints(chat.MemberIDs())
	s.emitter.Emit(websocket.EventAlert, all, fmt.Sprintf("Welcome to %s group", chat.Name))
	s.emitter.Emit(websocket.EventRefetchChats, websocket.FromUints(others), nil)
	slog.Info("Group created", "chatID", chat.ID, "creatorID", creatorID, "members", len(members))
	return chat, nil
}

func (s *ChatService) MyChats(ctx context.Context, userID uint) ([]models.ChatListItem, error) {
	chats, err := s.chats.FindByMember(ctx, userID, postgres.ChatFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]models.ChatListItem, 0, len(chats))
	for i := range chats {
		c := &chats[i]
		item := models.ChatListItem{ID: c.ID, GroupChat: c.GroupChat, Name: c.Name, Members: []uint{}}
		others := c.OtherMembers(userID)
		for _, m := range others {
			item.Members = append(item.Members, m.ID)
		}

		if c.GroupChat {
			item.Avatar = groupAvatars(c.Members)
		} else if len(others) > 0 {
			item.Avatar = []string{others[0].AvatarURL}
			item.Name = others[0].Name
		} else {
			item.Avatar = []string{}
		}
		out = append(out, item)
	}
	return out, nil
}

// MyGroups lists groups the user created.
func (s *ChatService) MyGroups(ctx context.Context, userID uint) ([]models.GroupListItem, error) {
	chats, err := s.chats.FindByMember(ctx, userID, postgres.ChatFilter{GroupChat: boolPtr(true), CreatorID: &userID})
	if err != nil {
		return nil, err
	}

	out := make([]models.GroupListItem, 0, len(chats))
	for i := range chats {
		out = append(out, models.GroupListItem{
			ID:        chats[i].ID,
			GroupChat: true,
			Name:      chats[i].Name,
			Avatar:    groupAvatars(chats[i].Members),
		})
	}
	return out, nil
}

func (s *ChatService) AddMembers(ctx context.Context, userID uint, req *models.AddMembersRequest) error {
	chat, err := s.creatorGroup(ctx, req.ChatID, userID)
	if err != nil {
		return err
	}

	ids := uniqueIDs(req.Members, 0)
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(users) != len(ids) {
		return ErrUserNotFound
	}

	names := make([]string, 0, len(users))
	for i := range users {
		names = append(names, users[i].Name)
		if !chat.HasMember(users[i].ID) {
			chat.Members = append(chat.Members, &users[i])
		}
	}
	if len(chat.Members) > models.GroupMaxMembers {
		return ErrGroupMemberLimit
	}

	if err := s.chats.Save(ctx, chat); err != nil {
		return fmt.Errorf("failed to add members: %w", err)
	}

	all := websocket.FromUints(chat.MemberIDs())
	s.emitter.Emit(websocket.EventAlert, all, fmt.Sprintf("%s has been added in the group", strings.Join(names, ",")))
	s.emitter.Emit(websocket.EventRefetchChats, all, nil)
	return nil
}

func (s *ChatService) RemoveMember(ctx context.Context, userID uint, req *models.RemoveMemberRequest) error {
	chat, err := s.creatorGroup(ctx, req.ChatID, userID)
	if err != nil {
		return err
	}
	removed, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if len(chat.Members) <= models.GroupMinMembers {
		return ErrGroupTooSmall
	}

	former := websocket.FromUints(chat.MemberIDs())
	chat.Members = chat.OtherMembers(req.UserID)
	if err := s.chats.Save(ctx, chat); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.emitter.Emit(websocket.EventAlert, websocket.FromUints(chat.MemberIDs()), websocket.AlertEvent{
		Message: fmt.Sprintf("%s has been removed from the group", removed.Name),
		ChatID:  websocket.ChatIDFromUint(chat.ID),
	})
	s.emitter.Emit(websocket.EventRefetchChats, former, nil)
	return nil
}

// Leave removes the caller from a group. A leaving creator hands the group
// to a random remaining member.
func (s *ChatService) Leave(ctx context.Context, userID, chatID uint) error {
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.GroupChat {
		return ErrNotGroupChat
	}
	if len(chat.Members) <= models.GroupMinMembers {
		return ErrGroupTooSmall
	}
	if !chat.HasMember(userID) {
		return ErrNotChatMember
	}

	var leaver string
	for _, m := range chat.Members {
		if m.ID == userID {
			leaver = m.Name
		}
	}

	chat.Members = chat.OtherMembers(userID)
	if chat.IsCreator(userID) {
		next := chat.Members[rand.Intn(len(chat.Members))].ID
		chat.CreatorID = &next
	}
	if err := s.chats.Save(ctx, chat); err != nil {
		return fmt.Errorf("failed to leave group: %w", err)
	}

	remaining := websocket.FromUints(chat.MemberIDs())
	s.emitter.Emit(websocket.EventAlert, remaining, websocket.AlertEvent{
		Message: fmt.Sprintf("User %s has left the group", leaver),
		ChatID:  websocket.ChatIDFromUint(chat.ID),
	})
	s.emitter.Emit(websocket.EventRefetchChats, remaining, nil)
	return nil
}

// SendAttachments uploads files and stores them as one message.
func (s *ChatService) SendAttachments(ctx context.Context, userID, chatID uint, files []*multipart.FileHeader) (*models.MessageResponse, error) {
	if len(files) < 1 || len(files) > maxAttachments {
		return nil, ErrNoAttachments
	}

	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, ErrNotChatMember
	}
	sender, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	objects, err := s.blobs.UploadMany(ctx, attachmentFolder, files)
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachments: %w", err)
	}

	msg := &models.Message{SenderID: userID, ChatID: chatID}
	for _, obj := range objects {
		msg.Attachments = append(msg.Attachments, models.Attachment{PublicID: obj.PublicID, URL: obj.URL})
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		ids := make([]string, 0, len(objects))
		for _, obj := range objects {
			ids = append(ids, obj.PublicID)
		}
		s.blobs.Delete(ctx, ids)
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	msg.Sender = *sender

	resp := msg.Response()
	audience := websocket.FromUints(chat.MemberIDs())
	chatRef := websocket.ChatIDFromUint(chatID)
	s.emitter.Emit(websocket.EventNewMessage, audience, websocket.NewMessageEvent{ChatID: chatRef, Message: resp})
	s.emitter.Emit(websocket.EventNewMessageAlert, audience, websocket.ChatEvent{ChatID: chatRef})

	s.publish(ctx, msg)
	return &resp, nil
}

func (s *ChatService) Details(ctx context.Context, chatID uint, populate bool) (any, error) {
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if !populate {
		return models.ChatDetailResponse{
			ID:        chat.ID,
			Name:      chat.Name,
			GroupChat: chat.GroupChat,
			Creator:   chat.CreatorID,
			Members:   chat.MemberIDs(),
		}, nil
	}

	members := make([]models.UserSummary, 0, len(chat.Members))
	for _, m := range chat.Members {
		members = append(members, m.Summary())
	}
	return models.PopulatedChatResponse{
		ID:        chat.ID,
		Name:      chat.Name,
		GroupChat: chat.GroupChat,
		Creator:   chat.CreatorID,
		Members:   members,
	}, nil
}

func (s *ChatService) Rename(ctx context.Context, userID, chatID uint, name string) error {
	chat, err := s.creatorGroup(ctx, chatID, userID)
	if err != nil {
		return err
	}

	chat.Name = strings.TrimSpace(name)
	if err := s.chats.Save(ctx, chat); err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}

	s.emitter.Emit(websocket.EventRefetchChats, websocket.FromUints(chat.MemberIDs()), nil)
	return nil
}

// Delete removes a chat with its messages. Blob cleanup is best effort.
func (s *ChatService) Delete(ctx context.Context, userID, chatID uint) error {
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.GroupChat && !chat.IsCreator(userID) {
		return ErrNotGroupCreator
	}
	if !chat.GroupChat && !chat.HasMember(userID) {
		return ErrNotChatMember
	}

	ids, err := s.messages.AttachmentIDsByChat(ctx, chatID)
	if err != nil {
		slog.Warn("Failed to list attachments", "chatID", chatID, "error", err)
	} else if len(ids) > 0 {
		s.blobs.Delete(ctx, ids)
	}

	if err := s.messages.DeleteByChat(ctx, chatID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if err := s.chats.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	s.emitter.Emit(websocket.EventRefetchChats, websocket.FromUints(chat.MemberIDs()), nil)
	slog.Info("Chat deleted", "chatID", chatID, "userID", userID, "attachments", len(ids))
	return nil
}

// Messages returns one page in chronological order.
func (s *ChatService) Messages(ctx context.Context, userID, chatID uint, page int) (*models.MessagesPageResponse, error) {
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, ErrNotChatMember
	}
	if page < 1 {
		page = 1
	}

	msgs, err := s.messages.FindByChat(ctx, chatID, (page-1)*models.MessagesPerPage, models.MessagesPerPage)
	if err != nil {
		return nil, err
	}
	total, err := s.messages.CountByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	out := make([]models.MessageResponse, len(msgs))
	for i := range msgs {
		out[len(msgs)-1-i] = msgs[i].Response()
	}
	return &models.MessagesPageResponse{
		Success:    true,
		Messages:   out,
		TotalPages: int(math.Ceil(float64(total) / models.MessagesPerPage)),
	}, nil
}

// SaveMessage stores a realtime message and announces it on the event stream.
func (s *ChatService) SaveMessage(ctx context.Context, rec websocket.MessageRecord) error {
	chatID, err := rec.ChatID.Uint()
	if err != nil {
		return fmt.Errorf("%w: chat %q", ErrInvalidID, rec.ChatID)
	}
	senderID, err := rec.SenderID.Uint()
	if err != nil {
		return fmt.Errorf("%w: user %q", ErrInvalidID, rec.SenderID)
	}

	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(senderID) {
		return ErrNotChatMember
	}

	msg := &models.Message{Content: rec.Content, SenderID: senderID, ChatID: chatID}
	msg.CreatedAt = rec.CreatedAt
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}

	s.publish(ctx, msg)
	return nil
}

func (s *ChatService) publish(ctx context.Context, msg *models.Message) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishMessageCreated(ctx, kafka.MessageCreatedEvent{
		Type:        kafka.EventMessageCreated,
		MessageID:   msg.ID,
		ChatID:      msg.ChatID,
		SenderID:    msg.SenderID,
		Content:     msg.Content,
		Attachments: len(msg.Attachments),
		CreatedAt:   msg.CreatedAt,
	})
	if err != nil {
		slog.Warn("Failed to publish message event", "messageID", msg.ID, "chatID", msg.ChatID, "error", err)
	}
}

func (s *ChatService) findChat(ctx context.Context, chatID uint) (*models.Chat, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return chat, nil
}

// creatorGroup loads a group chat that userID created.
func (s *ChatService) creatorGroup(ctx context.Context, chatID, userID uint) (*models.Chat, error) {
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.GroupChat {
		return nil, ErrNotGroupChat
	}
	if !chat.IsCreator(userID) {
		return nil, ErrNotGroupCreator
	}
	return chat, nil
}

func groupAvatars(members []*models.User) []string {
	n := min(len(members), 3)
	out := make([]string, 0, n)
	for _, m := range members[:n] {
		out = append(out, m.AvatarURL)
	}
	return out
}

// uniqueIDs drops duplicates, zero ids and skip.
func uniqueIDs(ids []uint, skip uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == skip || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
