package postgres

import (
	"context"

	"chatkaro-service/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

// Create inserts the message together with its attachments.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Omit("Sender").Create(msg).Error
}

// FindByChat returns one page of messages, newest first.
func (r *MessageRepository) FindByChat(ctx context.Context, chatID uint, offset, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender", preloadMembers).
		Preload("Attachments").
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) CountByChat(ctx context.Context, chatID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count, err
}

// AttachmentIDsByChat lists blob object ids referenced by the chat's messages.
func (r *MessageRepository) AttachmentIDsByChat(ctx context.Context, chatID uint) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Attachment{}).
		Joins("JOIN messages ON messages.id = attachments.message_id").
		Where("messages.chat_id = ?", chatID).
		Pluck("attachments.public_id", &ids).Error
	return ids, err
}

func (r *MessageRepository) DeleteByChat(ctx context.Context, chatID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&models.Message{}).Select("id").Where("chat_id = ?", chatID)
		if err := tx.Where("message_id IN (?)", sub).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Where("chat_id = ?", chatID).Delete(&models.Message{}).Error
	})
}
