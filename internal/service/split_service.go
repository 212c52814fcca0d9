package service

import (
	"context"
	"fmt"
	"time"

	"giftledger/internal/codegen"
	"giftledger/internal/config"
	"giftledger/internal/infrastructure/lock"
	"giftledger/internal/model"
	"giftledger/internal/repository"
	"giftledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type SplitService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	cardRepo        *repository.CardRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
	allocator       *codegen.Allocator
}

func NewSplitService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SplitService {
	cardRepo := repository.NewCardRepository(db)
	return &SplitService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		cardRepo:        cardRepo,
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		allocator:       codegen.NewAllocator(cardRepo, cfg.Business.CodeMaxAttempts),
	}
}

type SplitRequest struct {
	SourceCode    string `json:"sourceCode" binding:"required"`
	SplitAmount   int64  `json:"splitAmount" binding:"required,gt=0"`
	NewOwnerEmail string `json:"newOwnerEmail" binding:"required,email"`
	ReferenceID   string `json:"reference_id" binding:"required"`
}

type NewCardInfo struct {
	Code    string `json:"code"`
	Balance int64  `json:"balance"`
}

type SplitResponse struct {
	OriginalRemaining int64       `json:"original_remaining"`
	NewCard           NewCardInfo `json:"new_card"`
	Message           string      `json:"message,omitempty"`
}

// Split moves part of the source card's balance onto a freshly minted card for
// a new owner, writing a SPLIT_OUT/SPLIT_IN entry pair that nets to zero.
// The base reference is deduplicated the same way a spend is: a replayed split
// finds its "<base>_OUT" entry under the source row lock and returns the
// original outcome instead of double-debiting.
func (s *SplitService) Split(ctx context.Context, req *SplitRequest) (*SplitResponse, error) {
	if req.SplitAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	cardLock := lock.NewCardLock(s.redisClient, req.SourceCode)
	if err := cardLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, err
	}
	defer cardLock.Unlock(ctx)

	var resp *SplitResponse

	err := s.db.Transaction(func(tx *gorm.DB) error {
		source, err := s.cardRepo.GetByCodeForUpdate(ctx, tx, req.SourceCode)
		if err != nil {
			return err
		}

		outRef := req.ReferenceID + model.RefSuffixSplitOut
		existing, err := s.transactionRepo.GetByReferenceID(ctx, tx, outRef)
		if err != nil {
			return err
		}
		if existing != nil {
			replay, err := s.replaySplit(ctx, tx, source, req.ReferenceID)
			if err != nil {
				return err
			}
			resp = replay
			return nil
		}

		if source.Balance < req.SplitAmount {
			return ErrInsufficientBalance
		}

		newBalance := source.Balance - req.SplitAmount

		outTrans := &model.CardTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			CardID:        source.ID,
			Amount:        -req.SplitAmount,
			Type:          model.TransactionTypeSplitOut,
			ReferenceID:   outRef,
		}
		if err := s.transactionRepo.Create(ctx, tx, outTrans); err != nil {
			return err
		}

		if err := s.cardRepo.UpdateBalance(ctx, tx, source.ID, newBalance, newBalance != 0); err != nil {
			return err
		}

		code, err := s.allocator.Allocate(ctx)
		if err != nil {
			return err
		}

		newCard := &model.Card{
			Code:       code,
			Balance:    req.SplitAmount,
			Currency:   source.Currency,
			IsActive:   true,
			OwnerEmail: req.NewOwnerEmail,
		}
		if err := s.cardRepo.Create(ctx, tx, newCard); err != nil {
			return err
		}

		inTrans := &model.CardTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			CardID:        newCard.ID,
			Amount:        req.SplitAmount,
			Type:          model.TransactionTypeSplitIn,
			ReferenceID:   req.ReferenceID + model.RefSuffixSplitIn,
		}
		if err := s.transactionRepo.Create(ctx, tx, inTrans); err != nil {
			return err
		}

		if err := writeCardEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.CardEvents, model.EventCardSplit, source.Code, map[string]interface{}{
			"split_amount":       req.SplitAmount,
			"original_remaining": newBalance,
			"new_card_code":      newCard.Code,
			"reference_id":       req.ReferenceID,
		}); err != nil {
			return err
		}

		resp = &SplitResponse{
			OriginalRemaining: newBalance,
			NewCard: NewCardInfo{
				Code:    newCard.Code,
				Balance: newCard.Balance,
			},
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// replaySplit reconstructs the outcome of an earlier split with the same base
// reference: the SPLIT_IN entry identifies the card that was minted.
func (s *SplitService) replaySplit(ctx context.Context, tx *gorm.DB, source *model.Card, baseRef string) (*SplitResponse, error) {
	inTrans, err := s.transactionRepo.GetByReferenceID(ctx, tx, baseRef+model.RefSuffixSplitIn)
	if err != nil {
		return nil, err
	}
	if inTrans == nil {
		// both entries are written in one transaction, so a lone _OUT row
		// means the ledger is corrupt
		return nil, fmt.Errorf("split ledger entries inconsistent for reference %q", baseRef)
	}

	newCard, err := s.cardRepo.GetByID(ctx, tx, inTrans.CardID)
	if err != nil {
		return nil, err
	}

	return &SplitResponse{
		OriginalRemaining: source.Balance,
		NewCard: NewCardInfo{
			Code:    newCard.Code,
			Balance: newCard.Balance,
		},
		Message: "Already processed",
	}, nil
}
