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

type SpendService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	cardRepo        *repository.CardRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewSpendService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SpendService {
	return &SpendService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		cardRepo:        repository.NewCardRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type SpendRequest struct {
	Code        string `json:"code" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	ReferenceID string `json:"reference_id" binding:"required"`
}

type SpendResponse struct {
	RemainingBalance int64  `json:"remaining_balance"`
	Message          string `json:"message,omitempty"`
}

// Spend debits the card in one atomic unit of work. The card row is locked
// before its balance is read; a replayed reference returns the current balance
// without reapplying the debit. Driving the balance to exactly zero
// deactivates the card.
func (s *SpendService) Spend(ctx context.Context, req *SpendRequest) (*SpendResponse, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	cardLock := lock.NewCardLock(s.redisClient, req.Code)
	if err := cardLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, err
	}
	defer cardLock.Unlock(ctx)

	var resp *SpendResponse

	err := s.db.Transaction(func(tx *gorm.DB) error {
		card, err := s.cardRepo.GetByCodeForUpdate(ctx, tx, req.Code)
		if err != nil {
			return err
		}

		if !card.IsActive {
			return ErrCardInactive
		}
		if card.Balance < req.Amount {
			return ErrInsufficientBalance
		}

		// The row lock serializes this lookup against concurrent spends with
		// the same reference: the loser blocks above until the winner commits,
		// then sees the winner's ledger entry here.
		existing, err := s.transactionRepo.GetByReferenceID(ctx, tx, req.ReferenceID)
		if err != nil {
			return err
		}
		if existing != nil {
			resp = &SpendResponse{
				RemainingBalance: card.Balance,
				Message:          "Already processed",
			}
			return nil
		}

		trans := &model.CardTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			CardID:        card.ID,
			Amount:        -req.Amount,
			Type:          model.TransactionTypeSpend,
			ReferenceID:   req.ReferenceID,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return err
		}

		newBalance := card.Balance - req.Amount
		if err := s.cardRepo.UpdateBalance(ctx, tx, card.ID, newBalance, newBalance != 0); err != nil {
			return err
		}

		if err := writeCardEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.CardEvents, model.EventCardSpent, card.Code, map[string]interface{}{
			"amount":            req.Amount,
			"remaining_balance": newBalance,
			"reference_id":      req.ReferenceID,
		}); err != nil {
			return err
		}

		resp = &SpendResponse{RemainingBalance: newBalance}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return resp, nil
}
