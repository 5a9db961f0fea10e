package services

import (
	"context"
	"mime/multipart"

	"chatkaro-service/internal/adapters/kafka"
	"chatkaro-service/internal/adapters/storage"
	"chatkaro-service/internal/models"
	"chatkaro-service/internal/repositories/postgres"
	"chatkaro-service/internal/websocket"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Search(ctx context.Context, name string, excludeIDs []uint) ([]models.User, error)
}

type ChatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	FindByID(ctx context.Context, id uint) (*models.Chat, error)
	FindByMember(ctx context.Context, userID uint, filter postgres.ChatFilter) ([]models.Chat, error)
	CountByMember(ctx context.Context, userID uint, groupChat bool) (int64, error)
	Save(ctx context.Context, chat *models.Chat) error
	Delete(ctx context.Context, chatID uint) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByChat(ctx context.Context, chatID uint, offset, limit int) ([]models.Message, error)
	CountByChat(ctx context.Context, chatID uint) (int64, error)
	AttachmentIDsByChat(ctx context.Context, chatID uint) ([]string, error)
	DeleteByChat(ctx context.Context, chatID uint) error
}

type RequestRepository interface {
	Create(ctx context.Context, req *models.FriendRequest) error
	FindByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	FindBetween(ctx context.Context, a, b uint) (*models.FriendRequest, error)
	FindByReceiver(ctx context.Context, receiverID uint) ([]models.FriendRequest, error)
	Delete(ctx context.Context, id uint) error
}

// BlobStore keeps avatars and attachments.
type BlobStore interface {
	Upload(ctx context.Context, folder string, file *multipart.FileHeader) (storage.Object, error)
	UploadMany(ctx context.Context, folder string, files []*multipart.FileHeader) ([]storage.Object, error)
	Delete(ctx context.Context, ids []string)
}

// EventPublisher streams durable message events. It may be nil.
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, evt kafka.MessageCreatedEvent) error
}

// EventEmitter pushes server-originated events to connected users.
type EventEmitter interface {
	Emit(event websocket.EventType, audience []websocket.UserID, payload any) websocket.DeliveryReport
}
