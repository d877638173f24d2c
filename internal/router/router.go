package router

import (
	"net/http"

	"fundi/config"
	"fundi/internal/handler"
	"fundi/internal/middleware"
	"fundi/internal/repository"
	"fundi/internal/service"
	"fundi/internal/ws"
	"fundi/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, provider payment.Provider) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	limiter := middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	mpesaRequestRepo := repository.NewMpesaRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	paymentsHub := ws.NewHub()

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcmSvc != nil {
		log.Info().Str("component", "fcm").Msg("push notifications enabled")
	} else if cfg.Firebase.ServiceAccountPath != "" {
		log.Warn().Str("component", "fcm").Msg("push notifications disabled: failed to init (check service account file)")
	} else {
		log.Info().Str("component", "fcm").Msg("push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc)
	paymentSvc := service.NewPaymentService(provider, bookingRepo, mpesaRequestRepo, paymentRepo)
	reconciler := service.NewReconciler(db, mpesaRequestRepo, paymentRepo, bookingRepo, providerRepo, auditRepo, notifSvc, paymentsHub)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	mpesaHandler := handler.NewMpesaHandler(paymentSvc)
	mpesaWebhookHandler := handler.NewMpesaWebhookHandler(reconciler)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	adminHandler := handler.NewAdminHandler(paymentSvc)

	authMw := middleware.AuthRequired(&cfg.JWT)
	rateMw := middleware.RateLimit(limiter)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", rateMw, authHandler.Login)

		// Daraja retries on anything but 200, so the callback is never rate limited.
		api.POST("/payments/callback", middleware.CallbackToken(cfg.Mpesa.CallbackToken), mpesaWebhookHandler.Handle)

		authed := api.Group("")
		authed.Use(authMw, rateMw)
		{
			authed.POST("/payments/initiate", mpesaHandler.Initiate)
			authed.GET("/payments/:checkoutRequestId/status", mpesaHandler.Status)
		}

		me := api.Group("/me")
		me.Use(authMw, rateMw)
		{
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.POST("/fcm-token", authHandler.RegisterFCMToken)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/mpesa-requests/pending", adminHandler.PendingMpesaRequests)
		}
	}

	r.GET("/ws/payments", ws.UpgradePaymentsWS(&cfg.JWT, paymentsHub))

	return r
}
