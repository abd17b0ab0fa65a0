package router

import (
	"net/http"
	"time"

	"farmlink/config"
	"farmlink/internal/domain"
	"farmlink/internal/handler"
	"farmlink/internal/middleware"
	"farmlink/internal/repository"
	"farmlink/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Setup wires repositories, the referral service and handlers onto a gin
// engine. The returned limiter must be stopped on shutdown.
func Setup(cfg *config.Config, db *gorm.DB, log logrus.FieldLogger) (*gin.Engine, *middleware.InMemoryRateLimiter) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	corsConfig := cors.DefaultConfig()
	if allowsAnyOrigin(cfg.CORS.AllowOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORS.AllowOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AddAllowHeaders("Authorization")
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	referralSvc := service.NewReferralService(db, referralRepo, userRepo, orderRepo, cfg.Referral, log)

	// Handlers
	referralHandler := handler.NewReferralHandler(referralSvc)
	orderHandler := handler.NewOrderHandler(referralSvc)
	adminHandler := handler.NewAdminHandler(referralSvc, auditRepo)

	limiter := middleware.NewInMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	limit := middleware.RateLimit(limiter)
	authMw := middleware.AuthRequired(&cfg.JWT)
	partyMw := middleware.RequireRole(domain.RoleFarmer, domain.RoleConsumer)

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/referrals/validate/:code", limit, referralHandler.Validate)
		api.POST("/referrals/apply", authMw, limit, partyMw, referralHandler.Apply)

		me := api.Group("/me")
		me.Use(authMw, limit)
		{
			me.GET("/referral-codes", partyMw, referralHandler.GetMyCodes)
			me.GET("/referrals/stats", referralHandler.GetMyStats)
			me.GET("/referrals/history", referralHandler.GetMyHistory)
			me.GET("/free-deliveries", referralHandler.GetMyFreeDeliveries)
		}

		api.POST("/orders/:order_id/free-delivery", authMw, limit, orderHandler.ApplyFreeDelivery)

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.POST("/referrals/:user_id/cashback", adminHandler.ApplyFarmerCashback)
			admin.POST("/referrals/:user_id/block", adminHandler.BlockProfile)
		}
	}
	return r, limiter
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
