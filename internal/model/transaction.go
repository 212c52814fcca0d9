package model

import (
	"time"
)

const (
	TransactionTypeSpend    = "SPEND"
	TransactionTypeRefund   = "REFUND"
	TransactionTypeSplitOut = "SPLIT_OUT"
	TransactionTypeSplitIn  = "SPLIT_IN"
)

// Reference ID suffixes derived from the caller's base reference.
const (
	RefSuffixRefund   = "_REFUND"
	RefSuffixSplitOut = "_OUT"
	RefSuffixSplitIn  = "_IN"
)

// CardTransaction is an append-only ledger entry explaining one balance change.
//
// Rows are never updated or deleted. A card's balance is a materialized running
// total: at all times balance == opening balance + sum of its entries' amounts.
// ReferenceID is unique across all rows and is the sole mechanism preventing a
// retried spend, refund or split from applying twice.
type CardTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	CardID        int64     `gorm:"index;not null" json:"card_id"`
	Amount        int64     `gorm:"not null" json:"amount"` // positive credit, negative debit
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	ReferenceID   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CardTransaction) TableName() string {
	return "gift_card_transaction"
}
