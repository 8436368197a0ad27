package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"hydro-monitor-backend/config"
	"hydro-monitor-backend/internal/mw"
	"hydro-monitor-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, t Telemetry, s store.Store, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()
	r.Use(mw.CORS(cfg.AllowedOrigin))

	handler := NewHandler(t, s, webpushOptions)

	rateLimit := rate.Limit(10)
	if cfg.RateLimitPerSec > 0 {
		rateLimit = rate.Limit(cfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(rateLimit, 5)

	// Response cache for the read endpoints; short-lived so polling
	// dashboards mostly hit it.
	cacheTTL := 5 * time.Second
	if cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	cacheStore := cache.New(cacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/readings", caching, handler.GetReadings)
		api.GET("/readings/range", caching, handler.GetReadingsRange)
		api.POST("/readings", handler.PostReading)

		api.GET("/status", handler.GetStatus)
		api.PATCH("/status", handler.PatchStatus)

		api.GET("/export/csv", handler.ExportCSV)
		api.GET("/export/json", handler.ExportJSON)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
