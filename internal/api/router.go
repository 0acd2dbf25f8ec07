package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"parking-status-backend/config"
	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/mw"
	"parking-status-backend/internal/telemetry"
)

// NewRouter creates and configures the Gin router. ws may be nil when the
// WebSocket telemetry transport is not wired.
func NewRouter(cfg config.ServerConfig, d Deps, ws *telemetry.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(d.Logger))

	handler := NewHandler(d)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if ws != nil {
		r.GET("/ws/telemetry", ws.ServeWS)
	}

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.POST("/detect", handler.Detect)
		api.GET("/vehicle/:qr_code", handler.GetVehicle)
		api.POST("/payment/confirm", handler.ConfirmPayment)
		api.GET("/vehicles/active", handler.ListActive)
		api.GET("/vehicles/all", caching, handler.ListAll)

		api.GET("/config/pricing", caching, handler.GetPricing)
		api.PUT("/config/pricing", handler.PutPricing)

		api.GET("/dashboard/stats", caching, handler.GetDashboardStats)

		api.POST("/telemetry", handler.PostTelemetry)
		api.GET("/slots", handler.GetSlots)
		api.POST("/slots/:n/block", handler.BlockSlot)
		api.POST("/slots/:n/unblock", handler.UnblockSlot)

		api.POST("/access", handler.PostAccess)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
