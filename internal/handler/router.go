package handler

import (
	"giftledger/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter wires the HTTP routes.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		api.POST("/admin/cards", h.CreateCard)

		cards := api.Group("/cards")
		{
			cards.GET("/read/:code", h.ReadCard)
			cards.GET("/:code/balance", h.CheckBalance)
			cards.GET("/:code/transactions", h.ListTransactions)

			internal := cards.Group("", InternalKeyMiddleware(cfg.Business.InternalServiceKey))
			{
				internal.POST("/spend", h.SpendCard)
				internal.POST("/refund", h.RefundCard)
				internal.POST("/split", h.SplitCard)
			}
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
