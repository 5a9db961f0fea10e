package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// User represents the user entity
type User struct {
	gorm.Model
	Name     string `gorm:"not null"`
	Username string `gorm:"uniqueIndex;size:64;not null"`
	Password string `gorm:"not null"` // bcrypt hash
	Bio      string
	// AvatarID is the blob store object id, AvatarURL its public URL
	AvatarID  string
	AvatarURL string
}

// Summary returns the short public form of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.AvatarURL}
}

// Response returns the profile form of the user.
func (u *User) Response() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Bio:       u.Bio,
		Avatar:    Avatar{PublicID: u.AvatarID, URL: u.AvatarURL},
		CreatedAt: u.CreatedAt,
	}
}

/** -------------------- DTOs -------------------- */
// Request
type RegisterRequest struct {
	Name     string `form:"name" binding:"required"`
	Username string `form:"username" binding:"required,min=3,max=64"`
	Password string `form:"password" binding:"required,min=6"`
	Bio      string `form:"bio" binding:"required"`
}

// LoginRequest represents the request for user login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SendRequestRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

type AcceptRequestRequest struct {
	RequestID uint  `json:"requestId" binding:"required"`
	Accept    *bool `json:"accept" binding:"required"`
}

// Response
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type UserResponse struct {
	ID        uint      `json:"_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Avatar    Avatar    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserSummary is the compact user shape used in lists and message senders
type UserSummary struct {
	ID     uint   `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// AuthResponse is returned by register and login; the token is also set as a cookie
// swagger:model
type AuthResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
	Token   string       `json:"token"`
}

type NotificationResponse struct {
	ID     uint        `json:"_id"`
	Sender UserSummary `json:"sender"`
}

// ProfileResponse is the current user plus their chat counts
type ProfileResponse struct {
	Success bool         `json:"success"`
	User    UserResponse `json:"user"`
	Chats   int64        `json:"chats"`
	Groups  int64        `json:"groups"`
}
