package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pricelens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		if cfg.RateLimit.PerIP > 0 {
			products.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
		}
		{
			products.GET("/barcode/:barcode", handler.GetByBarcode)
			products.GET("/search", handler.SearchProducts)
			products.POST("/identify", handler.IdentifyProduct)
		}

		v1.GET("/cache/stats", handler.GetCacheStats)
	}

	return router
}
