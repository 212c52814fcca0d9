package model

import (
	"time"
)

// Card is a balance-bearing gift card addressed by a unique human-readable code.
//
// Balance is stored in minor currency units ($10.00 = 1000) and must never be
// persisted negative. The code, idempotency key and transaction reference IDs
// are guarded by database unique indexes, not only application checks, so a
// check-then-insert race loses at the constraint rather than corrupting state.
type Card struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code           string    `gorm:"type:varchar(14);uniqueIndex;not null" json:"code"`
	Balance        int64     `gorm:"not null" json:"balance"`
	Currency       string    `gorm:"type:varchar(3);not null;default:USD" json:"currency"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	IdempotencyKey *string   `gorm:"type:varchar(64);uniqueIndex" json:"idempotency_key,omitempty"`
	OwnerEmail     string    `gorm:"type:varchar(128)" json:"owner_email,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Card) TableName() string {
	return "gift_card"
}

// Balance check failure reasons.
const (
	ReasonCardNotFound     = "CARD_NOT_FOUND"
	ReasonCardInactive     = "CARD_INACTIVE"
	ReasonNotEnoughBalance = "not enough balance"
)
