package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/billing"
	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/metrics"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/internal/stripe"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// SubscriptionService пользовательские операции биллинга: запуск checkout,
// плановая отмена и путь чтения подписки/лимитов.
type SubscriptionService struct {
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	client  stripe.Client
	plans   *billing.PlanResolver
	metrics metrics.BillingMetrics
	log     *logger.Logger
}

// NewSubscriptionService создает новый сервис подписок.
func NewSubscriptionService(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	client stripe.Client,
	plans *billing.PlanResolver,
	m metrics.BillingMetrics,
	log *logger.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		users:   users,
		subs:    subs,
		client:  client,
		plans:   plans,
		metrics: m,
		log:     log,
	}
}

// StartCheckout готовит пользователя к оплате и возвращает hosted
// checkout-сессию для целевого тарифа.
// Локальная часть идемпотентна: повторный вызов не создает второго клиента
// Stripe и второй строки подписки. Сама сессия идемпотентной не является -
// неиспользованные сессии истекают сами.
func (s *SubscriptionService) StartCheckout(ctx context.Context, userID string, targetTier domain.Tier, successURL, cancelURL string) (*stripe.CheckoutSession, error) {
	if s.client == nil {
		return nil, domain.ErrProviderUnavailable
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
		}
		return nil, err
	}

	priceID, err := s.plans.PriceIDForTier(targetTier)
	if err != nil {
		return nil, err
	}

	sub, err := s.ensureSubscription(ctx, user)
	if err != nil {
		return nil, err
	}

	session, err := s.client.CreateCheckoutSession(ctx, stripe.CheckoutSessionInput{
		StripeCustomerID: sub.StripeCustomerID,
		PriceID:          priceID,
		SuccessURL:       successURL,
		CancelURL:        cancelURL,
		UserID:           user.ID,
		Tier:             string(targetTier),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCheckoutStarted(string(targetTier))
	s.log.Infow("Checkout started", "userID", user.ID, "tier", targetTier, "sessionID", session.ID)
	return session, nil
}

// ScheduleCancellation помечает подписку на отмену в конце оплаченного
// периода у провайдера и зеркалит флаг локально. Операция обратного хода
// не имеет: "разотменить" через этот интерфейс нельзя.
func (s *SubscriptionService) ScheduleCancellation(ctx context.Context, userID string) error {
	if s.client == nil {
		return domain.ErrProviderUnavailable
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNoActiveSubscription
		}
		return err
	}
	if sub.StripeSubscriptionID == "" {
		return domain.ErrNoActiveSubscription
	}

	if err := s.client.CancelAtPeriodEnd(ctx, sub.StripeSubscriptionID); err != nil {
		return err
	}

	sub.CancelAtPeriodEnd = true
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.log.Infow("Subscription cancellation scheduled", "userID", userID, "stripeSubscriptionID", sub.StripeSubscriptionID)
	return nil
}

// Entitlements возвращает лимиты пользователя. Отсутствие строки подписки -
// не ошибка: пользователь без подписки живет на неявном FREE.
func (s *SubscriptionService) Entitlements(ctx context.Context, userID string) (domain.Entitlements, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return billing.EntitlementsForTier(domain.TierFree), nil
		}
		return domain.Entitlements{}, err
	}
	return billing.EntitlementsForTier(sub.Tier), nil
}

// GetSubscription возвращает подписку пользователя для биллингового UI.
// Для пользователя без строки подписки синтезируется неявный FREE.
func (s *SubscriptionService) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.Subscription{
				UserID: userID,
				Tier:   domain.TierFree,
				Status: domain.StatusActive,
			}, nil
		}
		return nil, err
	}
	return sub, nil
}

// ensureSubscription гарантирует наличие локальной строки подписки и клиента
// Stripe. Существующий stripe_customer_id переиспользуется, поэтому повторные
// вызовы не плодят клиентов у провайдера.
func (s *SubscriptionService) ensureSubscription(ctx context.Context, user *domain.User) (*domain.Subscription, error) {
	sub, err := s.subs.GetByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if sub != nil && sub.StripeCustomerID != "" {
		return sub, nil
	}

	customerID, err := s.createCustomerWithRetry(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if sub == nil {
		sub = &domain.Subscription{
			ID:               uuid.NewString(),
			UserID:           user.ID,
			Tier:             domain.TierFree,
			Status:           domain.StatusActive,
			StripeCustomerID: customerID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return nil, err
		}
		s.log.Infow("Subscription row bootstrapped", "userID", user.ID, "stripeCustomerID", customerID)
		return sub, nil
	}

	sub.StripeCustomerID = customerID
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// createCustomerWithRetry создает клиента Stripe с экспоненциальным backoff.
// Повторяются только транспортные сбои и rate limit; остальные ошибки Stripe
// возвращаются сразу.
func (s *SubscriptionService) createCustomerWithRetry(ctx context.Context, user *domain.User) (string, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	var customerID string
	operation := func() error {
		id, err := s.client.CreateCustomer(ctx, user.ID, user.Email)
		if err != nil {
			if stripe.IsRetryableError(err) {
				s.log.Warnw("Retryable Stripe error during customer creation", "error", err, "userID", user.ID)
				return err
			}
			return backoff.Permanent(err)
		}
		customerID = id
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return customerID, nil
}
