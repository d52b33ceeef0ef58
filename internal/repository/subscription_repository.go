package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository интерфейс репозитория подписок.
type SubscriptionRepository interface {
	// GetByUserID возвращает подписку пользователя (не более одной на пользователя).
	GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error)

	// GetByStripeSubscriptionID возвращает подписку по внешнему идентификатору.
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)

	// Create создает новую подписку.
	Create(ctx context.Context, sub *domain.Subscription) error

	// Update полностью перезаписывает изменяемые поля подписки.
	Update(ctx context.Context, sub *domain.Subscription) error
}

// PostgresSubscriptionRepository реализация репозитория подписок через PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый репозиторий подписок через PostgreSQL.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		pool: pool,
		log:  log,
	}
}

// stripe_subscription_id хранится как NULL при отсутствии, чтобы частичный
// уникальный индекс не конфликтовал на незаполненных строках.
const subscriptionColumns = `
	id, user_id, tier, status,
	stripe_customer_id, COALESCE(stripe_subscription_id, ''), stripe_price_id,
	current_period_start, current_period_end, cancel_at_period_end,
	created_at, updated_at
`

// GetByUserID возвращает подписку пользователя из базы данных.
func (r *PostgresSubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	return r.scanOne(ctx, query, userID)
}

// GetByStripeSubscriptionID возвращает подписку по идентификатору Stripe.
func (r *PostgresSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`
	return r.scanOne(ctx, query, stripeSubscriptionID)
}

func (r *PostgresSubscriptionRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Subscription, error) {
	row := querierFrom(ctx, r.pool).QueryRow(ctx, query, arg)

	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Tier,
		&sub.Status,
		&sub.StripeCustomerID,
		&sub.StripeSubscriptionID,
		&sub.StripePriceID,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &sub, nil
}

// Create создает новую подписку.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
		INSERT INTO subscriptions (
			id, user_id, tier, status,
			stripe_customer_id, stripe_subscription_id, stripe_price_id,
			current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
	`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		sub.ID, sub.UserID, sub.Tier, sub.Status,
		sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	r.log.Debugw("Subscription created", "userID", sub.UserID, "tier", sub.Tier)
	return nil
}

// Update полностью перезаписывает изменяемые поля подписки.
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	sub.UpdatedAt = time.Now()

	query := `
		UPDATE subscriptions SET
			tier = $2, status = $3,
			stripe_customer_id = $4, stripe_subscription_id = NULLIF($5, ''), stripe_price_id = $6,
			current_period_start = $7, current_period_end = $8, cancel_at_period_end = $9,
			updated_at = $10
		WHERE id = $1
	`
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		sub.ID, sub.Tier, sub.Status,
		sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.log.Debugw("Subscription updated", "userID", sub.UserID, "tier", sub.Tier, "status", sub.Status)
	return nil
}
