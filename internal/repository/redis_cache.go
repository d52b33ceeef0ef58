package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// Префикс ключей кеша подписок (подписка 1:1 к пользователю)
	subscriptionKeyPrefix = "billing:subscription:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование подписок с использованием Redis.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория.
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis.
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheSubscription кеширует подписку пользователя.
func (r *RedisCacheRepository) CacheSubscription(ctx context.Context, sub *domain.Subscription) error {
	key := subscriptionKeyPrefix + sub.UserID

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache subscription: %w", err)
	}

	r.log.Debugw("Subscription cached", "userID", sub.UserID)
	return nil
}

// GetCachedSubscription возвращает подписку пользователя из кеша.
// Отсутствие в кеше - (nil, nil), а не ошибка.
func (r *RedisCacheRepository) GetCachedSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	key := subscriptionKeyPrefix + userID

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}
	return &sub, nil
}

// InvalidateSubscription удаляет подписку пользователя из кеша.
func (r *RedisCacheRepository) InvalidateSubscription(ctx context.Context, userID string) error {
	key := subscriptionKeyPrefix + userID
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate subscription cache: %w", err)
	}
	return nil
}
