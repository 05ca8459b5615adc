package handler

import (
	"lightning-timesheet/internal/adapter/http/middleware"
	redisStore "lightning-timesheet/internal/adapter/storage/redis"
	"lightning-timesheet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SettlementSvc  ports.SettlementService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.Recovery(deps.Logger),
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
		middleware.MaxBodySize(maxBodyBytes),
	)

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// limit is a no-op when Redis is not configured.
	limit := func(rule middleware.RateLimitRule) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1", middleware.UserIdentity())
	if deps.AuditSvc != nil {
		v1.Use(middleware.AuditLog(deps.AuditSvc))
	}

	sessionHandler := NewSessionHandler(deps.SettlementSvc)
	statsHandler := NewStatsHandler(deps.SettlementSvc)

	work := v1.Group("/work")
	{
		work.POST("/check-in", limit(middleware.SessionRule), sessionHandler.CheckIn)
		work.POST("/check-out", limit(middleware.SessionRule), sessionHandler.CheckOut)
		work.GET("/status", limit(middleware.ReadRule), sessionHandler.Status)
	}

	v1.POST("/payments/settle", limit(middleware.SettleRule), sessionHandler.SettleNow)

	v1.GET("/stats", limit(middleware.ReadRule), statsHandler.GetStats)
	v1.GET("/ledger", limit(middleware.ReadRule), statsHandler.ListLedger)
	v1.GET("/wallets", limit(middleware.ReadRule), statsHandler.GetWallets)
	v1.GET("/config", limit(middleware.ReadRule), statsHandler.GetConfig)

	return r
}
