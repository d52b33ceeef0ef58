package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxManager выполняет функцию в границах одной транзакции хранилища.
// Реконсилятор использует его, чтобы запись в журнал идемпотентности и
// эффекты обработчика фиксировались или откатывались как единое целое.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// querier общий подмножество pgxpool.Pool и pgx.Tx, с которым работают запросы.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// PgxTxManager реализует TxManager поверх пула pgx.
type PgxTxManager struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPgxTxManager создает новый менеджер транзакций.
func NewPgxTxManager(pool *pgxpool.Pool, log *logger.Logger) *PgxTxManager {
	return &PgxTxManager{
		pool: pool,
		log:  log,
	}
}

// WithinTx открывает транзакцию, кладет ее в контекст и выполняет fn.
// Ошибка fn откатывает транзакцию и возвращается вызывающему.
func (m *PgxTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			m.log.Errorw("Failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querierFrom возвращает активную транзакцию из контекста либо пул.
func querierFrom(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// isUniqueViolation проверяет, что ошибка - нарушение уникального ограничения.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
