package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/service"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// WebhookHandler обработчик для вебхуков Stripe
type WebhookHandler struct {
	webhooks *service.WebhookService
	log      *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(webhooks *service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		log:      log,
	}
}

// HandleStripeWebhook принимает вебхук от Stripe.
// Тело передается в сервис сырыми байтами: подпись считается по точно
// полученному телу, любой промежуточный разбор ее ломает.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error("Failed to read webhook body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read webhook body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")

	if err := h.webhooks.Ingest(c.Request.Context(), payload, sigHeader); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		case errors.Is(err, domain.ErrProviderUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook secret is not configured"})
		default:
			// 5xx заставляет Stripe переотправить событие позже.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
