// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"kardex/internal/domain/auth"
	"kardex/internal/domain/ledger"
	"kardex/internal/infrastructure/http/v1/handlers"
	"kardex/internal/infrastructure/http/v1/middleware"
	"kardex/internal/infrastructure/storage/postgres"
	"kardex/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool. Nil when the service runs on
	// the in-memory store.
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for the token endpoint
	AuthService *auth.Service

	// LedgerService posts movements and serves history
	LedgerService *ledger.Service

	// Replayer recalculates scopes
	Replayer *ledger.Replayer

	// Valorization builds valuation snapshots
	Valorization *ledger.Valorization
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Public auth endpoint
		if cfg.AuthService != nil {
			authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
			v1.POST("/auth/token", authHandler.Token)
		}

		// Protected endpoints
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		movementHandler := handlers.NewMovementHandler(baseHandler, cfg.LedgerService)
		protected.POST("/movements", middleware.RequireRole("ledger:write"), movementHandler.Post)
		protected.GET("/movements", middleware.RequireRole("ledger:read", "ledger:write"), movementHandler.History)

		valorizationHandler := handlers.NewValorizationHandler(baseHandler, cfg.Valorization)
		protected.GET("/valorization/:companyId", middleware.RequireRole("ledger:read", "ledger:write"), valorizationHandler.Snapshot)

		replayHandler := handlers.NewReplayHandler(baseHandler, cfg.Replayer)
		protected.POST("/replay", middleware.RequireRole("ledger:admin"), replayHandler.Replay)
		protected.POST("/replay/company/:companyId", middleware.RequireRole("ledger:admin"), replayHandler.SweepCompany)
	}

	return router
}
