package models

import (
	"time"

	"gorm.io/gorm"
)

const MessagesPerPage = 20

/** --------------------ENTITIES-------------------- */
// Message is a persisted chat message; realtime copies carry their own ids
type Message struct {
	gorm.Model
	Content     string       `gorm:"type:text"`
	SenderID    uint         `gorm:"not null;index"`
	Sender      User         `gorm:"foreignKey:SenderID"`
	ChatID      uint         `gorm:"not null;index"`
	Attachments []Attachment `gorm:"constraint:OnDelete:CASCADE"`
}

// Attachment references an object in the blob store
type Attachment struct {
	ID        uint   `gorm:"primarykey"`
	MessageID uint   `gorm:"not null;index"`
	PublicID  string `gorm:"not null"`
	URL       string `gorm:"not null"`
}

func (m *Message) Response() MessageResponse {
	attachments := make([]AttachmentResponse, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, AttachmentResponse{PublicID: a.PublicID, URL: a.URL})
	}
	return MessageResponse{
		ID:          m.ID,
		Content:     m.Content,
		Attachments: attachments,
		Sender:      m.Sender.Summary(),
		Chat:        m.ChatID,
		CreatedAt:   m.CreatedAt,
	}
}

/** -------------------- DTOs -------------------- */
type AttachmentResponse struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type MessageResponse struct {
	ID          uint                 `json:"_id"`
	Content     string               `json:"content"`
	Attachments []AttachmentResponse `json:"attachments"`
	Sender      UserSummary          `json:"sender"`
	Chat        uint                 `json:"chat"`
	CreatedAt   time.Time            `json:"createdAt"`
}

type MessagesPageResponse struct {
	Success    bool              `json:"success"`
	Messages   []MessageResponse `json:"messages"`
	TotalPages int               `json:"totalPages"`
}
