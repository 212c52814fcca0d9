package repository

import (
	"context"
	"errors"

	"giftledger/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.CardTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// GetByReferenceID returns (nil, nil) when no ledger entry carries the
// reference. Pass the unit-of-work tx so the lookup observes rows written by
// whichever concurrent operation held the card lock first.
func (r *TransactionRepository) GetByReferenceID(ctx context.Context, tx *gorm.DB, referenceID string) (*model.CardTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.CardTransaction
	err := tx.WithContext(ctx).Where("reference_id = ?", referenceID).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// GetSpendByCardAndReference finds the original SPEND entry a refund reverses.
// Returns (nil, nil) when absent.
func (r *TransactionRepository) GetSpendByCardAndReference(ctx context.Context, tx *gorm.DB, cardID int64, referenceID string) (*model.CardTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.CardTransaction
	err := tx.WithContext(ctx).
		Where("card_id = ? AND reference_id = ? AND type = ?", cardID, referenceID, model.TransactionTypeSpend).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) ListByCardID(ctx context.Context, cardID int64, page, pageSize int) ([]*model.CardTransaction, int64, error) {
	var transactions []*model.CardTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CardTransaction{}).Where("card_id = ?", cardID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
