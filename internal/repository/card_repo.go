package repository

import (
	"context"
	"errors"

	"giftledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCardNotFound = errors.New("card not found")
)

type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, tx *gorm.DB, card *model.Card) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(card).Error
}

func (r *CardRepository) GetByCode(ctx context.Context, code string) (*model.Card, error) {
	var card model.Card
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// GetByCodeForUpdate fetches the card row with an exclusive row lock
// (SELECT ... FOR UPDATE). Must be called inside a transaction; the lock is
// held until that transaction commits or rolls back.
func (r *CardRepository) GetByCodeForUpdate(ctx context.Context, tx *gorm.DB, code string) (*model.Card, error) {
	var card model.Card
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *CardRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Card, error) {
	if tx == nil {
		tx = r.db
	}
	var card model.Card
	err := tx.WithContext(ctx).Where("id = ?", id).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// GetByIdempotencyKey returns (nil, nil) when no card carries the key.
func (r *CardRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Card, error) {
	var card model.Card
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// CardCodeExists reports whether a card already uses the given code.
func (r *CardRepository) CardCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Card{}).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateBalance persists a new balance and active flag computed by the caller
// under a row lock.
func (r *CardRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, cardID int64, balance int64, isActive bool) error {
	result := tx.WithContext(ctx).
		Model(&model.Card{}).
		Where("id = ?", cardID).
		Updates(map[string]interface{}{
			"balance":   balance,
			"is_active": isActive,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}

	return nil
}
