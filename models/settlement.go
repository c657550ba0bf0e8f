package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Settlement struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID uuid.UUID `gorm:"type:uuid;index" json:"group_id"`
	PaidBy  uuid.UUID `gorm:"type:uuid" json:"paid_by"`
	Payer   User      `gorm:"foreignKey:PaidBy" json:"payer,omitempty"`
	PaidTo  uuid.UUID `gorm:"type:uuid" json:"paid_to"`
	Payee   User      `gorm:"foreignKey:PaidTo" json:"payee,omitempty"`
	Amount  int64     `gorm:"not null" json:"-"` // minor units, original currency
	Currency string   `gorm:"default:EUR;size:3" json:"currency"`
	// The ledger is applied with BaseAmount; original retained for audit.
	BaseAmount   int64     `gorm:"not null" json:"-"`
	ExchangeRate string    `gorm:"size:32" json:"exchange_rate"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type CreateSettlementRequest struct {
	PaidTo   string          `json:"paid_to" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency"`
	Notes    string          `json:"notes"`
}

type SettlementResponse struct {
	ID           uuid.UUID       `json:"id"`
	GroupID      uuid.UUID       `json:"group_id"`
	PaidBy       uuid.UUID       `json:"paid_by"`
	PayerName    string          `json:"payer_name"`
	PaidTo       uuid.UUID       `json:"paid_to"`
	PayeeName    string          `json:"payee_name"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	ExchangeRate string          `json:"exchange_rate"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
