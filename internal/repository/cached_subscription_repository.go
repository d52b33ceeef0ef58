package repository

import (
	"context"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
)

// SubscriptionCacheInvalidator сброс кеша подписки пользователя.
// Реконсилятор вызывает его после коммита, чтобы путь чтения лимитов
// не отдавал устаревший тариф.
type SubscriptionCacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием
// чтений по пользователю. Ошибки кеша не фатальны: репозиторий продолжает
// работать через основное хранилище.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием.
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) *CachedSubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByUserID возвращает подписку пользователя (сначала из кеша, потом из БД).
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	cached, err := r.cache.GetCachedSubscription(ctx, userID)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "userID", userID)
	}
	if cached != nil {
		r.log.Debugw("Subscription found in cache", "userID", userID)
		return cached, nil
	}

	sub, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "userID", userID)
	}
	return sub, nil
}

// GetByStripeSubscriptionID всегда идет в основное хранилище: ключ кеша -
// пользователь, а путь по внешнему идентификатору нужен только вебхукам.
func (r *CachedSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	return r.repo.GetByStripeSubscriptionID(ctx, stripeSubscriptionID)
}

// Create сохраняет подписку в БД и сбрасывает кеш пользователя.
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Create(ctx, sub); err != nil {
		return err
	}
	r.InvalidateUser(ctx, sub.UserID)
	return nil
}

// Update обновляет подписку в БД и сбрасывает кеш пользователя.
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		return err
	}
	r.InvalidateUser(ctx, sub.UserID)
	return nil
}

// InvalidateUser удаляет подписку пользователя из кеша.
func (r *CachedSubscriptionRepository) InvalidateUser(ctx context.Context, userID string) {
	if err := r.cache.InvalidateSubscription(ctx, userID); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache", "error", err, "userID", userID)
	}
}
