package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/Billing-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Ключи метаданных, связывающие сущности Stripe с локальным пользователем.
	// Метаданные checkout-сессии - единственный канал, по которому вебхуки
	// узнают, какому пользователю принадлежит внешняя подписка.
	MetadataUserIDKey = "user_id"
	MetadataTierKey   = "tier"
)

// CheckoutSessionInput параметры для создания hosted checkout-сессии.
type CheckoutSessionInput struct {
	StripeCustomerID string
	PriceID          string
	SuccessURL       string
	CancelURL        string
	UserID           string
	Tier             string
}

// CheckoutSession результат создания checkout-сессии.
type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// CreateCustomer создает нового клиента в Stripe и возвращает его Stripe ID.
	CreateCustomer(ctx context.Context, userID, email string) (string, error)

	// CreateCheckoutSession создает checkout-сессию в режиме подписки.
	// Метаданные {user_id, tier} прикрепляются и к сессии, и к будущей подписке.
	CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error)

	// CancelAtPeriodEnd помечает подписку в Stripe на отмену в конце периода.
	CancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error
}

// stripeClient реализует интерфейс Client поверх Stripe SDK.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe.
func NewStripeClient(apiKey string, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// CreateCustomer создает нового клиента в Stripe.
func (sc *stripeClient) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			MetadataUserIDKey: userID,
		},
	}
	params.Context = ctx

	cus, err := sc.client.Customers.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCustomer", err)
		return "", fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	sc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}

// CreateCheckoutSession создает hosted checkout-сессию в режиме подписки.
func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error) {
	metadata := map[string]string{
		MetadataUserIDKey: input.UserID,
		MetadataTierKey:   input.Tier,
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(input.StripeCustomerID),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(input.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		// Метаданные дублируются на подписку: события
		// customer.subscription.* несут их в объекте подписки.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	params.Metadata = metadata

	session, err := sc.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", session.ID, "userID", input.UserID, "tier", input.Tier)
	return &CheckoutSession{
		ID:          session.ID,
		RedirectURL: session.URL,
	}, nil
}

// CancelAtPeriodEnd помечает подписку на отмену в конце оплаченного периода.
func (sc *stripeClient) CancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	_, err := sc.client.Subscriptions.Update(stripeSubscriptionID, params)
	if err != nil {
		logStripeError(sc.log, "CancelAtPeriodEnd", err)
		return fmt.Errorf("stripe: failed to schedule subscription cancellation: %w", err)
	}

	sc.log.Infow("Stripe subscription scheduled for cancellation at period end", "stripeSubscriptionID", stripeSubscriptionID)
	return nil
}

// IsRetryableError сообщает, имеет ли смысл повторять вызов Stripe.
// Повторяемы только транспортные сбои и rate limit; ошибки карты,
// аутентификации и неверного запроса повторять бессмысленно.
func IsRetryableError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeAPI:
		return true
	default:
		return stripeErr.HTTPStatusCode == 429 || stripeErr.HTTPStatusCode >= 500
	}
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
