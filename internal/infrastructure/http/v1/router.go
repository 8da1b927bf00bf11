// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"kardex/internal/domain/audit"
	"kardex/internal/infrastructure/http/v1/handlers"
	"kardex/internal/infrastructure/http/v1/middleware"
	"kardex/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator validates bearer tokens. Nil disables authentication.
	JWTValidator middleware.JWTValidator

	// WriteRoles may submit movements. Empty allows any authenticated user.
	WriteRoles []string

	MovementService handlers.MovementService
	StockService    handlers.StockReader
	KardexService   handlers.KardexReader
	AuditReader     audit.Reader

	// Enqueuer enables POST /movements?async=true
	Enqueuer handlers.Enqueuer

	// HealthChecks are pinged by the readiness probe, keyed by name
	HealthChecks map[string]handlers.Pinger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	router.GET("/health", healthHandler.Ready)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		v1.Use(middleware.Auth(cfg.JWTValidator))
	}

	base := handlers.NewBaseHandler()
	registerMovementRoutes(v1, base, cfg)
	registerRegisterRoutes(v1, base, cfg)

	return router
}

// registerMovementRoutes registers movement submission endpoints.
func registerMovementRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.MovementService == nil {
		return
	}
	h := handlers.NewMovementHandler(base, cfg.MovementService, cfg.Enqueuer)

	movements := rg.Group("/movements")
	movements.POST("/preview", h.Preview)
	if cfg.AuditReader != nil {
		movements.GET("/:id/audit", handlers.NewAuditHandler(base, cfg.AuditReader).MovementHistory)
	}

	write := movements.Group("")
	if cfg.JWTValidator != nil {
		write.Use(middleware.RequireRole(cfg.WriteRoles...))
	}
	write.POST("", h.Apply)
}

// registerRegisterRoutes registers stock and kardex query endpoints.
func registerRegisterRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.StockService != nil {
		h := handlers.NewStockHandler(base, cfg.StockService)
		st := rg.Group("/stock")
		st.GET("/balances", h.GetBalances)
		st.GET("/availability/:productId", h.GetAvailability)
	}

	if cfg.KardexService != nil {
		h := handlers.NewKardexHandler(base, cfg.KardexService)
		rg.GET("/kardex", h.History)
	}
}
