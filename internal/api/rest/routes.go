package rest

import (
	"github.com/Dhoini/Billing-service/internal/api/rest/handlers"
	"github.com/Dhoini/Billing-service/internal/api/rest/middleware"
	"github.com/Dhoini/Billing-service/internal/config"
	"github.com/Dhoini/Billing-service/internal/service"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(
	subscriptions *service.SubscriptionService,
	webhooks *service.WebhookService,
	registry *prometheus.Registry,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	billingHandler := handlers.NewBillingHandler(subscriptions, log)
	webhookHandler := handlers.NewWebhookHandler(webhooks, log)

	// Пользовательские операции биллинга (под JWT)
	v1 := r.Group("/api/v1")
	{
		billing := v1.Group("/billing")
		billing.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, log))
		{
			billing.POST("/checkout", billingHandler.StartCheckout)
			billing.POST("/cancel", billingHandler.ScheduleCancellation)
			billing.GET("/entitlements", billingHandler.GetEntitlements)
			billing.GET("/subscription", billingHandler.GetSubscription)
		}
	}

	// Вебхуки на корневом уровне роутера: аутентификация здесь - подпись
	// провайдера, а не JWT.
	webhookGroup := r.Group("/webhooks")
	{
		webhookGroup.POST("/stripe", webhookHandler.HandleStripeWebhook)
	}

	return r
}
