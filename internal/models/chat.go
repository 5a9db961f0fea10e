package models

import (
	"gorm.io/gorm"
)

const (
	GroupMinMembers = 3
	GroupMaxMembers = 100
)

/** --------------------ENTITIES-------------------- */
// Chat is either a 1:1 conversation or a group
type Chat struct {
	gorm.Model
	Name      string  `gorm:"not null"`
	GroupChat bool    `gorm:"not null;default:false;index"`
	CreatorID *uint   `gorm:"index"`
	Creator   *User   `gorm:"foreignKey:CreatorID"`
	Members   []*User `gorm:"many2many:chat_members"`
}

func (c *Chat) MemberIDs() []uint {
	ids := make([]uint, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

func (c *Chat) HasMember(userID uint) bool {
	for _, m := range c.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func (c *Chat) IsCreator(userID uint) bool {
	return c.CreatorID != nil && *c.CreatorID == userID
}

// OtherMembers returns every member except userID.
func (c *Chat) OtherMembers(userID uint) []*User {
	out := make([]*User, 0, len(c.Members))
	for _, m := range c.Members {
		if m.ID != userID {
			out = append(out, m)
		}
	}
	return out
}

/** -------------------- DTOs -------------------- */
// Request
type NewGroupRequest struct {
	Name    string `json:"name" binding:"required"`
	Members []uint `json:"members" binding:"required,min=2,max=99"`
}

type AddMembersRequest struct {
	ChatID  uint   `json:"chatId" binding:"required"`
	Members []uint `json:"members" binding:"required,min=1,max=97"`
}

type RemoveMemberRequest struct {
	ChatID uint `json:"chatId" binding:"required"`
	UserID uint `json:"userId" binding:"required"`
}

type RenameGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// Response
type ChatListItem struct {
	ID        uint     `json:"_id"`
	GroupChat bool     `json:"groupChat"`
	Avatar    []string `json:"avatar"`
	Name      string   `json:"name"`
	Members   []uint   `json:"members"`
}

type GroupListItem struct {
	ID        uint     `json:"_id"`
	GroupChat bool     `json:"groupChat"`
	Name      string   `json:"name"`
	Avatar    []string `json:"avatar"`
}

type ChatDetailResponse struct {
	ID        uint   `json:"_id"`
	Name      string `json:"name"`
	GroupChat bool   `json:"groupChat"`
	Creator   *uint  `json:"creator,omitempty"`
	Members   []uint `json:"members"`
}

type PopulatedChatResponse struct {
	ID        uint          `json:"_id"`
	Name      string        `json:"name"`
	GroupChat bool          `json:"groupChat"`
	Creator   *uint         `json:"creator,omitempty"`
	Members   []UserSummary `json:"members"`
}
