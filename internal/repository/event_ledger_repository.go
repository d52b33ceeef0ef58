package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLedgerRepository журнал идемпотентности обработанных событий.
// Наличие записи означает, что эффекты события уже полностью применены.
type EventLedgerRepository interface {
	// Record фиксирует событие как обработанное. Повторная фиксация того же
	// stripe_event_id возвращает ErrDuplicate; уникальное ограничение также
	// закрывает гонку двух конкурентных доставок одного события, когда оба
	// вызова идут внутри своих транзакций.
	Record(ctx context.Context, stripeEventID, eventType string) error
}

// PostgresEventLedgerRepository реализация журнала через PostgreSQL.
type PostgresEventLedgerRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresEventLedgerRepository создает новый журнал событий через PostgreSQL.
func NewPostgresEventLedgerRepository(pool *pgxpool.Pool, log *logger.Logger) *PostgresEventLedgerRepository {
	return &PostgresEventLedgerRepository{
		pool: pool,
		log:  log,
	}
}

// Record фиксирует событие как обработанное.
func (r *PostgresEventLedgerRepository) Record(ctx context.Context, stripeEventID, eventType string) error {
	query := `
		INSERT INTO processed_events (id, stripe_event_id, event_type, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stripe_event_id) DO NOTHING
	`
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		uuid.NewString(), stripeEventID, eventType, time.Now(),
	)
	if err != nil {
		// Конкурентная доставка может проявиться и как прямое нарушение
		// уникальности до снятия блокировки первой транзакцией.
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}

	r.log.Debugw("Event recorded in idempotency ledger", "stripeEventID", stripeEventID, "eventType", eventType)
	return nil
}
