package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"giftledger/internal/codegen"
	"giftledger/internal/config"
	"giftledger/internal/model"
	"giftledger/internal/repository"

	"github.com/Rhymond/go-money"
	"gorm.io/gorm"
)

// CardService handles card creation and the read-only operations.
type CardService struct {
	db              *gorm.DB
	cfg             *config.Config
	cardRepo        *repository.CardRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
	allocator       *codegen.Allocator
}

func NewCardService(db *gorm.DB, cfg *config.Config) *CardService {
	cardRepo := repository.NewCardRepository(db)
	return &CardService{
		db:              db,
		cfg:             cfg,
		cardRepo:        cardRepo,
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		allocator:       codegen.NewAllocator(cardRepo, cfg.Business.CodeMaxAttempts),
	}
}

type CreateCardRequest struct {
	Balance        int64  `json:"balance" binding:"required"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

type CreateCardResponse struct {
	Code     string `json:"code"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	Reused   bool   `json:"reused"`
}

// Create mints a new card with the given opening balance. When the caller
// retries with the same idempotency key, the original card is returned with
// Reused set instead of minting a second one. The opening balance is not
// modeled as a ledger entry.
func (s *CardService) Create(ctx context.Context, req *CreateCardRequest) (*CreateCardResponse, error) {
	if req.Balance <= 0 {
		return nil, ErrInvalidAmount
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}
	if money.GetCurrency(currency) == nil {
		return nil, ErrInvalidCurrency
	}

	if req.IdempotencyKey != "" {
		existing, err := s.cardRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
		if existing != nil {
			return &CreateCardResponse{
				Code:     existing.Code,
				Balance:  existing.Balance,
				Currency: existing.Currency,
				Reused:   true,
			}, nil
		}
	}

	code, err := s.allocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	card := &model.Card{
		Code:     code,
		Balance:  req.Balance,
		Currency: currency,
		IsActive: true,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		card.IdempotencyKey = &key
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.cardRepo.Create(ctx, tx, card); err != nil {
			return err
		}
		return writeCardEvent(ctx, tx, s.outboxRepo, s.cfg.Kafka.Topic.CardEvents, model.EventCardCreated, card.Code, map[string]interface{}{
			"balance":  card.Balance,
			"currency": card.Currency,
		})
	})

	if err != nil {
		// Two concurrent creates with the same idempotency key race past the
		// lookup above; the unique index decides the winner. The loser
		// re-reads and returns the winner's card.
		if errors.Is(err, gorm.ErrDuplicatedKey) && req.IdempotencyKey != "" {
			existing, lookupErr := s.cardRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				return &CreateCardResponse{
					Code:     existing.Code,
					Balance:  existing.Balance,
					Currency: existing.Currency,
					Reused:   true,
				}, nil
			}
		}
		return nil, err
	}

	return &CreateCardResponse{
		Code:     card.Code,
		Balance:  card.Balance,
		Currency: card.Currency,
		Reused:   false,
	}, nil
}

// Read returns the card for the given code.
func (s *CardService) Read(ctx context.Context, code string) (*model.Card, error) {
	return s.cardRepo.GetByCode(ctx, code)
}

type CheckBalanceResponse struct {
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Balance  int64  `json:"balance,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// CheckBalance reports whether a card can be spent from and its current
// balance. Pure read against committed state; no locks taken.
func (s *CardService) CheckBalance(ctx context.Context, code string) (*CheckBalanceResponse, error) {
	card, err := s.cardRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return &CheckBalanceResponse{Valid: false, Reason: model.ReasonCardNotFound}, nil
		}
		return nil, err
	}

	if !card.IsActive {
		return &CheckBalanceResponse{Valid: false, Reason: model.ReasonCardInactive}, nil
	}

	if card.Balance <= 0 {
		return &CheckBalanceResponse{Valid: false, Reason: model.ReasonNotEnoughBalance}, nil
	}

	return &CheckBalanceResponse{
		Valid:    true,
		Balance:  card.Balance,
		Currency: card.Currency,
	}, nil
}

// ListTransactions returns a page of the card's ledger entries, newest first.
func (s *CardService) ListTransactions(ctx context.Context, code string, page, pageSize int) ([]*model.CardTransaction, int64, error) {
	card, err := s.cardRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	return s.transactionRepo.ListByCardID(ctx, card.ID, page, pageSize)
}
