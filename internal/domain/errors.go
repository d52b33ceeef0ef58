package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrNoActiveSubscription у пользователя нет активной подписки
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrProviderUnavailable платежный провайдер не сконфигурирован
	ErrProviderUnavailable = errors.New("payment provider is not configured")

	// ErrInvalidSignature не удалось проверить подпись вебхука
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrConfigurationMissing для тарифа не настроен идентификатор цены
	ErrConfigurationMissing = errors.New("price is not configured for tier")

	// ErrDuplicateEvent событие уже было обработано
	ErrDuplicateEvent = errors.New("event already processed")
)

// ReconciliationGap сигнализирует, что вебхук ссылается на подписку или
// пользователя, которых нет в локальном хранилище. По политике движка такие
// события логируются и помечаются обработанными без мутаций, чтобы провайдер
// не переотправлял их бесконечно.
type ReconciliationGap struct {
	EventID   string
	EventType string
	LookupKey string
}

// Error реализует интерфейс error
func (e *ReconciliationGap) Error() string {
	return fmt.Sprintf("reconciliation gap: event %s (%s) references unknown %s", e.EventID, e.EventType, e.LookupKey)
}

// NewReconciliationGap создает новую ошибку рассинхронизации
func NewReconciliationGap(eventID, eventType, lookupKey string) *ReconciliationGap {
	return &ReconciliationGap{
		EventID:   eventID,
		EventType: eventType,
		LookupKey: lookupKey,
	}
}
