package handler

import (
	"errors"
	"strconv"

	"giftledger/internal/codegen"
	"giftledger/internal/config"
	"giftledger/internal/repository"
	"giftledger/internal/service"
	"giftledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler bundles the card services behind the HTTP surface.
type Handler struct {
	cardService   *service.CardService
	spendService  *service.SpendService
	refundService *service.RefundService
	splitService  *service.SplitService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		cardService:   service.NewCardService(db, cfg),
		spendService:  service.NewSpendService(db, rdb, cfg),
		refundService: service.NewRefundService(db, rdb, cfg),
		splitService:  service.NewSplitService(db, rdb, cfg),
	}
}

// businessError maps ledger sentinel errors to response codes.
func businessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrInvalidCurrency):
		response.BusinessError(c, response.CodeInvalidCurrency, err.Error())
	case errors.Is(err, repository.ErrCardNotFound):
		response.BusinessError(c, response.CodeCardNotFound, err.Error())
	case errors.Is(err, service.ErrCardInactive):
		response.BusinessError(c, response.CodeCardInactive, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, service.ErrOriginalSpendNotFound):
		response.BusinessError(c, response.CodeOriginalSpendNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyRefunded):
		response.BusinessError(c, response.CodeAlreadyRefunded, err.Error())
	case errors.Is(err, codegen.ErrCodeSpaceExhausted):
		response.BusinessError(c, response.CodeCodeSpaceExhausted, err.Error())
	case service.IsContention(err):
		response.BusinessError(c, response.CodeContention, "operation contended, please retry")
	default:
		response.ServerError(c, err.Error())
	}
}

// CreateCard creates a gift card.
// POST /api/v1/admin/cards
func (h *Handler) CreateCard(c *gin.Context) {
	var req service.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.cardService.Create(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Created(c, result)
}

// ReadCard returns card details.
// GET /api/v1/cards/read/:code
func (h *Handler) ReadCard(c *gin.Context) {
	code := c.Param("code")

	card, err := h.cardService.Read(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			response.NotFound(c, "gift card not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"balance":    card.Balance,
		"currency":   card.Currency,
		"is_active":  card.IsActive,
		"created_at": card.CreatedAt,
		"updated_at": card.UpdatedAt,
	})
}

// CheckBalance reports whether the card is spendable.
// GET /api/v1/cards/:code/balance
func (h *Handler) CheckBalance(c *gin.Context) {
	code := c.Param("code")

	result, err := h.cardService.CheckBalance(c.Request.Context(), code)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// ListTransactions returns a page of the card's ledger entries.
// GET /api/v1/cards/:code/transactions?page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	code := c.Param("code")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.cardService.ListTransactions(c.Request.Context(), code, page, pageSize)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// SpendCard debits a card.
// POST /api/v1/cards/spend
func (h *Handler) SpendCard(c *gin.Context) {
	var req service.SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.spendService.Spend(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// RefundCard reverses a spend.
// POST /api/v1/cards/refund
func (h *Handler) RefundCard(c *gin.Context) {
	var req service.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.refundService.Refund(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// SplitCard moves part of a card's balance onto a new card.
// POST /api/v1/cards/split
func (h *Handler) SplitCard(c *gin.Context) {
	var req service.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.splitService.Split(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}
