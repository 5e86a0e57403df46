package handler

import (
	"lexpay/config"
	"lexpay/internal/adapter/http/middleware"
	"lexpay/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PurchaseSvc    ports.PurchaseService
	AccessSvc      ports.AccessService
	Catalog        ports.Catalog
	Gateway        ports.GatewayClient
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	RateLimits     config.RateLimitConfig
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.RateLimitRules(deps.RateLimits)
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rules[group], deps.Logger)
	}

	purchaseHandler := NewPurchaseHandler(deps.PurchaseSvc, deps.Catalog)
	accessHandler := NewAccessHandler(deps.AccessSvc)

	v1 := r.Group("/api/v1")

	// Gateway callbacks authenticate by signature, not bearer token.
	v1.POST("/webhooks/gateway", purchaseHandler.Webhook)
	v1.GET("/gateway/health", GatewayHealth(deps.Gateway))
	v1.GET("/catalog", purchaseHandler.Catalog)

	buyers := v1.Group("", middleware.RequireJSON(), middleware.BuyerAuth(deps.TokenSvc, deps.Logger))
	{
		buyers.POST("/purchases", rl("purchases"), purchaseHandler.StartPurchase)
		buyers.POST("/transactions/:id/charge", rl("charges"), purchaseHandler.SubmitCharge)
		buyers.GET("/transactions/:id", rl("status"), purchaseHandler.GetStatus)
		buyers.GET("/access/:document_type", rl("status"), accessHandler.HasAccess)
		buyers.GET("/library", rl("status"), accessHandler.Library)
	}

	support := v1.Group("", middleware.BuyerAuth(deps.TokenSvc, deps.Logger), middleware.RequireRole(ports.RoleSupport))
	{
		support.GET("/transactions/:id/events", purchaseHandler.ListEvents)
		support.DELETE("/support/access/:document_type", accessHandler.Revoke)
	}

	return r
}
