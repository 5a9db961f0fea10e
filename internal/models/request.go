package models

import "gorm.io/gorm"

const RequestStatusPending = "pending"

// FriendRequest is a pending request from Sender to Receiver
type FriendRequest struct {
	gorm.Model
	Status     string `gorm:"not null;default:pending;size:16"`
	SenderID   uint   `gorm:"not null;index"`
	Sender     User   `gorm:"foreignKey:SenderID"`
	ReceiverID uint   `gorm:"not null;index"`
	Receiver   User   `gorm:"foreignKey:ReceiverID"`
}
