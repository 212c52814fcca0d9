package service

import (
	"context"
	"time"

	"giftledger/internal/config"
	"giftledger/internal/infrastructure/lock"
	"giftledger/internal/model"
	"giftledger/internal/repository"
	"giftledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type RefundService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	cardRepo        *repository.CardRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewRefundService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *RefundService {
	return &RefundService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		cardRepo:        repository.NewCardRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type RefundRequest struct {
	Code        string `json:"code" binding:"required"`
	ReferenceID string `json:"reference_id" binding:"required"`
}

type RefundResponse struct {
	RefundedAmount int64 `json:"refunded_amount"`
	NewBalance     int64 `json:"new_balance"`
}

// Refund reverses the spend identified by ReferenceID, crediting back its full
// amount and reactivating the card. The refund's own ledger entry carries the
// reference "<ReferenceID>_REFUND"; its uniqueness makes a second refund of
// the same spend fail with ErrAlreadyRefunded rather than replay silently.
func (s *RefundService) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	cardLock := lock.NewCardLock(s.redisClient, req.Code)
	if err := cardLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, err
	}
	defer cardLock.Unlock(ctx)

	var resp *RefundResponse

	err := s.db.Transaction(func(tx *gorm.DB) error {
		card, err := s.cardRepo.GetByCodeForUpdate(ctx, tx, req.Code)
		if err != nil {
			return err
		}

		spendTrans, err := s.transactionRepo.GetSpendByCardAndReference(ctx, tx, card.ID, req.ReferenceID)
		if err != nil {
			return err
		}
		if spendTrans == nil {
			return ErrOriginalSpendNotFound
		}

		refundRef := req.ReferenceID + model.RefSuffixRefund
		existing, err := s.transactionRepo.GetByReferenceID(ctx, tx, refundRef)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyRefunded
		}

		amount := spendTrans.Amount
		if amount < 0 {
			amount = -amount
		}
		newBalance := card.Balance + amount

		if err := s.cardRepo.UpdateBalance(ctx, tx, card.ID, newBalance, true); err != nil {
			return err
		}

		trans := &model.CardTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			CardID:        card.ID,
			Amount:        amount,
			Type:          model.TransactionTypeRefund,
			ReferenceID:   refundRef,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return err
		}

		if err := writeCardEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.CardEvents, model.EventCardRefunded, card.Code, map[string]interface{}{
			"refunded_amount": amount,
			"new_balance":     newBalance,
			"reference_id":    req.ReferenceID,
		}); err != nil {
			return err
		}

		resp = &RefundResponse{
			RefundedAmount: amount,
			NewBalance:     newBalance,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return resp, nil
}
