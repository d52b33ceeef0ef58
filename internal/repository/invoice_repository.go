package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceRepository интерфейс репозитория счетов. Счета append-only:
// создаются обработчиками вебхуков и никогда не изменяются.
type InvoiceRepository interface {
	// Create добавляет запись о счете. Повторная вставка того же
	// stripe_invoice_id возвращает ErrDuplicate без изменения данных.
	Create(ctx context.Context, invoice *domain.Invoice) error

	// ListBySubscriptionID возвращает счета подписки, новые первыми.
	ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.Invoice, error)
}

// PostgresInvoiceRepository реализация репозитория счетов через PostgreSQL.
type PostgresInvoiceRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresInvoiceRepository создает новый репозиторий счетов через PostgreSQL.
func NewPostgresInvoiceRepository(pool *pgxpool.Pool, log *logger.Logger) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{
		pool: pool,
		log:  log,
	}
}

// Create добавляет запись о счете.
func (r *PostgresInvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	invoice.CreatedAt = time.Now()

	query := `
		INSERT INTO invoices (
			id, subscription_id, stripe_invoice_id,
			amount_cents, currency, status,
			hosted_invoice_url, invoice_pdf, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (stripe_invoice_id) DO NOTHING
	`
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		invoice.ID, invoice.SubscriptionID, invoice.StripeInvoiceID,
		invoice.AmountCents, invoice.Currency, invoice.Status,
		invoice.HostedInvoiceURL, invoice.InvoicePDF, invoice.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}

	r.log.Debugw("Invoice recorded", "stripeInvoiceID", invoice.StripeInvoiceID, "amountCents", invoice.AmountCents)
	return nil
}

// ListBySubscriptionID возвращает счета подписки.
func (r *PostgresInvoiceRepository) ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.Invoice, error) {
	query := `
		SELECT id, subscription_id, stripe_invoice_id,
			amount_cents, currency, status,
			hosted_invoice_url, invoice_pdf, created_at
		FROM invoices
		WHERE subscription_id = $1
		ORDER BY created_at DESC
	`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		err := rows.Scan(
			&inv.ID, &inv.SubscriptionID, &inv.StripeInvoiceID,
			&inv.AmountCents, &inv.Currency, &inv.Status,
			&inv.HostedInvoiceURL, &inv.InvoicePDF, &inv.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
