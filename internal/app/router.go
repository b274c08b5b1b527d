package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"settlement/internal/handler"
	"settlement/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SettlementHandler *handler.SettlementHandler
	RefundHandler     *handler.RefundHandler
	RedisClient       *redis.Client
	NewRelicApp       *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Settlement routes.
		settlements := v1.Group("/settlements")
		{
			settlements.POST("", deps.SettlementHandler.SettleTrip)
			settlements.POST("/preview", deps.SettlementHandler.PreviewCharges)
			settlements.GET("/:bookingID", deps.SettlementHandler.GetSettlement)
			settlements.GET("/:bookingID/status", deps.SettlementHandler.GetStatus)
			settlements.POST("/:bookingID/charge", deps.SettlementHandler.ChargeFees)
			settlements.POST("/:bookingID/retry", deps.SettlementHandler.RetryCharge)
			settlements.POST("/:bookingID/waive", deps.SettlementHandler.WaiveCharges)
			settlements.POST("/:bookingID/adjust", deps.SettlementHandler.AdjustCharges)
		}

		// Refund routes.
		refunds := v1.Group("/refunds")
		{
			refunds.POST("", deps.RefundHandler.CreateRequest)
			refunds.GET("", deps.RefundHandler.ListByBooking)
			refunds.GET("/:id", deps.RefundHandler.GetRequest)
			refunds.POST("/:id/approve", deps.RefundHandler.ApproveRequest)
			refunds.POST("/:id/reject", deps.RefundHandler.RejectRequest)
			refunds.POST("/:id/process", deps.RefundHandler.ProcessRequest)
		}

		// Host ledger routes.
		v1.GET("/hosts/:hostID/balance", deps.RefundHandler.GetHostBalance)
	}

	return router
}
