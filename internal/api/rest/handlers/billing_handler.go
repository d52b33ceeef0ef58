package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/Billing-service/internal/api/rest/middleware"
	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/service"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/Dhoini/Billing-service/pkg/req"
	"github.com/gin-gonic/gin"
)

// CheckoutRequest тело запроса на запуск checkout
type CheckoutRequest struct {
	Tier       string `json:"tier" validate:"required,oneof=PRO PREMIUM"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// CheckoutResponse ответ с созданной checkout-сессией
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// BillingHandler обработчик пользовательских операций биллинга
type BillingHandler struct {
	subscriptions *service.SubscriptionService
	log           *logger.Logger
}

// NewBillingHandler создает новый обработчик биллинга
func NewBillingHandler(subscriptions *service.SubscriptionService, log *logger.Logger) *BillingHandler {
	return &BillingHandler{
		subscriptions: subscriptions,
		log:           log,
	}
}

// StartCheckout запускает checkout-сессию для целевого тарифа
func (h *BillingHandler) StartCheckout(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	body, err := req.HandleBody[CheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	session, err := h.subscriptions.StartCheckout(c.Request.Context(), userID, domain.Tier(body.Tier), body.SuccessURL, body.CancelURL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckoutResponse{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	})
}

// ScheduleCancellation помечает подписку пользователя на отмену в конце периода
func (h *BillingHandler) ScheduleCancellation(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	if err := h.subscriptions.ScheduleCancellation(c.Request.Context(), userID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancel_at_period_end": true})
}

// GetEntitlements возвращает лимиты текущего пользователя
func (h *BillingHandler) GetEntitlements(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	entitlements, err := h.subscriptions.Entitlements(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entitlements)
}

// GetSubscription возвращает подписку текущего пользователя
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// respondError переводит ошибки домена в HTTP статусы
func (h *BillingHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, domain.ErrNoActiveSubscription):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active subscription"})
	case errors.Is(err, domain.ErrConfigurationMissing):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tier is not configured"})
	case errors.Is(err, domain.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment provider is unavailable"})
	default:
		h.log.Error("Billing operation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
