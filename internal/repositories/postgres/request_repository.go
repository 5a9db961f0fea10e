package postgres

import (
	"context"

	"chatkaro-service/internal/models"

	"gorm.io/gorm"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db}
}

func (r *RequestRepository) Create(ctx context.Context, req *models.FriendRequest) error {
	return r.db.WithContext(ctx).Omit("Sender", "Receiver").Create(req).Error
}

func (r *RequestRepository) FindByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.WithContext(ctx).
		Preload("Sender", preloadMembers).
		Preload("Receiver", preloadMembers).
		First(&req, id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindBetween looks for a request in either direction.
func (r *RequestRepository) FindBetween(ctx context.Context, a, b uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) FindByReceiver(ctx context.Context, receiverID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.WithContext(ctx).
		Preload("Sender", preloadMembers).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *RequestRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.FriendRequest{}, id).Error
}
