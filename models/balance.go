package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance represents a simplified debt between two users, in base currency.
type Balance struct {
	From     uuid.UUID       `json:"from"`
	FromName string          `json:"from_name"`
	To       uuid.UUID       `json:"to"`
	ToName   string          `json:"to_name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// MemberBalance is one member's net position within a group.
type MemberBalance struct {
	UserID  uuid.UUID       `json:"user_id"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"` // positive = owed to them, negative = they owe
}

// FriendBalance represents the overall balance with a single friend
type FriendBalance struct {
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	Amount    decimal.Decimal `json:"amount"` // positive = they owe you, negative = you owe them
	Currency  string          `json:"currency"`
}

// GroupBalanceSummary is returned for GET /api/groups/:id/balances
type GroupBalanceSummary struct {
	GroupID    uuid.UUID       `json:"group_id"`
	GroupName  string          `json:"group_name"`
	Members    []MemberBalance `json:"members"`
	Balances   []Balance       `json:"balances"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Currency   string          `json:"currency"`
}

// OverallBalanceSummary is returned for GET /api/balances
type OverallBalanceSummary struct {
	TotalOwed  decimal.Decimal `json:"total_owed"`  // total others owe you
	TotalOwing decimal.Decimal `json:"total_owing"` // total you owe others
	Friends    []FriendBalance `json:"friends"`
}
