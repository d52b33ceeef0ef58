package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
)

// InMemorySubscriptionRepository реализация репозитория подписок в памяти.
type InMemorySubscriptionRepository struct {
	byUserID map[string]domain.Subscription
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти.
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		byUserID: make(map[string]domain.Subscription),
		log:      log,
	}
}

// GetByUserID возвращает подписку пользователя.
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sub, exists := r.byUserID[userID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := sub
	return &copied, nil
}

// GetByStripeSubscriptionID возвращает подписку по идентификатору Stripe.
func (r *InMemorySubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if stripeSubscriptionID == "" {
		return nil, ErrNotFound
	}
	for _, sub := range r.byUserID {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			copied := sub
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// Create создает новую подписку.
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byUserID[sub.UserID]; exists {
		return ErrDuplicate
	}

	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	r.byUserID[sub.UserID] = *sub

	return nil
}

// Update обновляет существующую подписку.
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byUserID[sub.UserID]; !exists {
		return ErrNotFound
	}

	sub.UpdatedAt = time.Now()
	r.byUserID[sub.UserID] = *sub

	return nil
}

// InMemoryInvoiceRepository реализация репозитория счетов в памяти.
type InMemoryInvoiceRepository struct {
	byStripeID map[string]domain.Invoice
	mutex      sync.RWMutex
	log        *logger.Logger
}

// NewInMemoryInvoiceRepository создает новый репозиторий счетов в памяти.
func NewInMemoryInvoiceRepository(log *logger.Logger) *InMemoryInvoiceRepository {
	return &InMemoryInvoiceRepository{
		byStripeID: make(map[string]domain.Invoice),
		log:        log,
	}
}

// Create добавляет запись о счете.
func (r *InMemoryInvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byStripeID[invoice.StripeInvoiceID]; exists {
		return ErrDuplicate
	}

	invoice.CreatedAt = time.Now()
	r.byStripeID[invoice.StripeInvoiceID] = *invoice

	return nil
}

// ListBySubscriptionID возвращает счета подписки.
func (r *InMemoryInvoiceRepository) ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.Invoice, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var invoices []domain.Invoice
	for _, inv := range r.byStripeID {
		if inv.SubscriptionID == subscriptionID {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

// InMemoryEventLedgerRepository журнал идемпотентности в памяти.
type InMemoryEventLedgerRepository struct {
	processed map[string]domain.ProcessedEvent
	mutex     sync.Mutex
	log       *logger.Logger
}

// NewInMemoryEventLedgerRepository создает новый журнал событий в памяти.
func NewInMemoryEventLedgerRepository(log *logger.Logger) *InMemoryEventLedgerRepository {
	return &InMemoryEventLedgerRepository{
		processed: make(map[string]domain.ProcessedEvent),
		log:       log,
	}
}

// Record фиксирует событие как обработанное.
func (r *InMemoryEventLedgerRepository) Record(ctx context.Context, stripeEventID, eventType string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.processed[stripeEventID]; exists {
		return ErrDuplicate
	}

	r.processed[stripeEventID] = domain.ProcessedEvent{
		StripeEventID: stripeEventID,
		EventType:     eventType,
		ProcessedAt:   time.Now(),
	}
	return nil
}

// Forget удаляет запись из журнала (используется для отката в NoopTxManager).
func (r *InMemoryEventLedgerRepository) Forget(stripeEventID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.processed, stripeEventID)
}

// Seen сообщает, зафиксировано ли событие.
func (r *InMemoryEventLedgerRepository) Seen(stripeEventID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	_, exists := r.processed[stripeEventID]
	return exists
}

// InMemoryUserRepository реализация репозитория пользователей в памяти.
type InMemoryUserRepository struct {
	users map[string]domain.User
	mutex sync.RWMutex
}

// NewInMemoryUserRepository создает репозиторий пользователей в памяти.
func NewInMemoryUserRepository(users ...domain.User) *InMemoryUserRepository {
	r := &InMemoryUserRepository{users: make(map[string]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

// GetByID возвращает пользователя по идентификатору.
func (r *InMemoryUserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	user, exists := r.users[userID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := user
	return &copied, nil
}

// NoopTxManager исполняет функцию без настоящей транзакции, сериализуя
// вызовы мьютексом. Используется с in-memory репозиториями.
type NoopTxManager struct {
	mutex sync.Mutex
}

// NewNoopTxManager создает новый NoopTxManager.
func NewNoopTxManager() *NoopTxManager {
	return &NoopTxManager{}
}

// WithinTx выполняет fn под мьютексом.
func (m *NoopTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return fn(ctx)
}
