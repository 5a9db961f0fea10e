package postgres

import (
	"context"

	"chatkaro-service/internal/models"

	"gorm.io/gorm"
)

// ChatFilter narrows FindByMember. Nil fields do not filter.
type ChatFilter struct {
	GroupChat *bool
	CreatorID *uint
}

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db}
}

func preloadMembers(db *gorm.DB) *gorm.DB {
	return db.Select("id, name, username, avatar_id, avatar_url, created_at, updated_at, deleted_at")
}

// Create inserts the chat and its membership rows without touching user rows.
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Omit("Members.*", "Creator").Create(chat).Error
}

func (r *ChatRepository) FindByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Preload("Members", preloadMembers).
		First(&chat, id).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepository) FindByMember(ctx context.Context, userID uint, filter ChatFilter) ([]models.Chat, error) {
	var chats []models.Chat
	q := r.db.WithContext(ctx).
		Preload("Members", preloadMembers).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.user_id = ?", userID)
	if filter.GroupChat != nil {
		q = q.Where("chats.group_chat = ?", *filter.GroupChat)
	}
	if filter.CreatorID != nil {
		q = q.Where("chats.creator_id = ?", *filter.CreatorID)
	}
	err := q.Order("chats.updated_at DESC").Find(&chats).Error
	return chats, err
}

func (r *ChatRepository) CountByMember(ctx context.Context, userID uint, groupChat bool) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Chat{}).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.user_id = ? AND chats.group_chat = ?", userID, groupChat).
		Count(&count).Error
	return count, err
}

// Save persists name, creator and the full member list.
func (r *ChatRepository) Save(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(chat).Select("name", "creator_id").Updates(chat).Error; err != nil {
			return err
		}
		return tx.Model(chat).Omit("Members.*").Association("Members").Replace(chat.Members)
	})
}

func (r *ChatRepository) Delete(ctx context.Context, chatID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Clear the many-to-many rows before removing the chat
		if err := tx.Model(&models.Chat{Model: gorm.Model{ID: chatID}}).Association("Members").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.Chat{}, chatID).Error
	})
}
