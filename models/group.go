package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"skolu-backend/engine"
)

type Group struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string        `gorm:"not null;size:100" json:"name"`
	Description string        `gorm:"size:500" json:"description,omitempty"`
	Type        string        `gorm:"default:other;size:20" json:"type"` // home, trip, couple, other
	CreatedBy   uuid.UUID     `gorm:"type:uuid" json:"created_by"`
	Creator     User          `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Members     []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

type GroupMember struct {
	GroupID  uuid.UUID   `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID   uuid.UUID   `gorm:"type:uuid;primaryKey" json:"user_id"`
	User     User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role     engine.Role `gorm:"type:varchar(20);default:member" json:"role"`
	Balance  int64       `gorm:"not null;default:0" json:"-"` // base-currency minor units
	JoinedAt time.Time   `gorm:"autoCreateTime" json:"joined_at"`
}

// Request structs
type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Members     []string `json:"members"` // list of user IDs or emails
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Role   string `json:"role"` // defaults to member
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Response structs
type GroupResponse struct {
	ID          uuid.UUID             `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Type        string                `json:"type"`
	CreatedBy   uuid.UUID             `json:"created_by"`
	Members     []GroupMemberResponse `json:"members"`
	CreatedAt   time.Time             `json:"created_at"`
}

type GroupMemberResponse struct {
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	Role      engine.Role     `json:"role"`
	Balance   decimal.Decimal `json:"balance"` // base currency, major units
	JoinedAt  time.Time       `json:"joined_at"`
}
