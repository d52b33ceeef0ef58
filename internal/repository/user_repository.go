package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository read-only доступ к пользователям окружающего приложения.
// Биллингу нужны только идентификатор и email.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}

// PostgresUserRepository реализация доступа к пользователям через PostgreSQL.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresUserRepository создает новый репозиторий пользователей.
func NewPostgresUserRepository(pool *pgxpool.Pool, log *logger.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{
		pool: pool,
		log:  log,
	}
}

// GetByID возвращает пользователя по идентификатору.
func (r *PostgresUserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT id, email FROM users WHERE id = $1`

	var user domain.User
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&user.ID, &user.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}
