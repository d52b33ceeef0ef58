package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/Billing-service/internal/billing"
	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/kafka"
	"github.com/Dhoini/Billing-service/internal/metrics"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/internal/stripe"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

// WebhookService реконсилирует локальное состояние подписок по событиям
// провайдера. Вся обработка события идет в одной транзакции вместе с записью
// в журнал идемпотентности: ошибка обработчика откатывает журнал, транспорт
// отвечает ошибкой, и провайдер переотправляет событие по своему расписанию.
// Собственного цикла повторов у сервиса нет.
type WebhookService struct {
	verifier stripe.WebhookVerifier
	tx       repository.TxManager
	subs     repository.SubscriptionRepository
	invoices repository.InvoiceRepository
	ledger   repository.EventLedgerRepository
	plans    *billing.PlanResolver
	cache    repository.SubscriptionCacheInvalidator
	producer kafka.Producer
	metrics  metrics.BillingMetrics
	log      *logger.Logger
}

// WebhookServiceDeps зависимости сервиса вебхуков.
// Cache может быть nil (кеширование выключено).
type WebhookServiceDeps struct {
	Verifier stripe.WebhookVerifier
	Tx       repository.TxManager
	Subs     repository.SubscriptionRepository
	Invoices repository.InvoiceRepository
	Ledger   repository.EventLedgerRepository
	Plans    *billing.PlanResolver
	Cache    repository.SubscriptionCacheInvalidator
	Producer kafka.Producer
	Metrics  metrics.BillingMetrics
	Log      *logger.Logger
}

// NewWebhookService создает новый сервис обработки вебхуков.
func NewWebhookService(deps WebhookServiceDeps) *WebhookService {
	return &WebhookService{
		verifier: deps.Verifier,
		tx:       deps.Tx,
		subs:     deps.Subs,
		invoices: deps.Invoices,
		ledger:   deps.Ledger,
		plans:    deps.Plans,
		cache:    deps.Cache,
		producer: deps.Producer,
		metrics:  deps.Metrics,
		log:      deps.Log,
	}
}

// Ingest принимает сырое тело вебхука и заголовок подписи.
// Порядок шагов фиксирован: проверка подписи по точным байтам, затем в одной
// транзакции запись в журнал идемпотентности и диспетчеризация обработчика.
// Повторная доставка уже обработанного события - успешный no-op.
func (s *WebhookService) Ingest(ctx context.Context, payload []byte, sigHeader string) error {
	start := time.Now()

	event, err := s.verifier.VerifyAndParse(payload, sigHeader)
	if err != nil {
		s.log.Warnw("Webhook rejected before dispatch", "error", err)
		s.metrics.IncWebhookEvent("unknown", metrics.OutcomeFailed)
		return err
	}

	outcome := metrics.OutcomeProcessed
	var updated *domain.Subscription

	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.Record(txCtx, event.ID, event.Type); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.ErrDuplicateEvent
			}
			return err
		}

		sub, err := s.dispatch(txCtx, event)
		if err != nil {
			var gap *domain.ReconciliationGap
			if errors.As(err, &gap) {
				// По политике движка пробелы реконсиляции не блокируют
				// фиксацию: событие помечается обработанным без мутаций,
				// иначе провайдер будет переотправлять его бесконечно.
				s.log.Warnw("Reconciliation gap",
					"eventID", gap.EventID,
					"eventType", gap.EventType,
					"lookupKey", gap.LookupKey,
				)
				outcome = metrics.OutcomeGap
				return nil
			}
			return err
		}

		if sub == nil && event.Kind == domain.EventKindOther {
			outcome = metrics.OutcomeUnhandled
		}
		updated = sub
		return nil
	})

	if errors.Is(err, domain.ErrDuplicateEvent) {
		s.log.Infow("Duplicate webhook event ignored", "eventID", event.ID, "eventType", event.Type)
		s.metrics.IncWebhookEvent(event.Type, metrics.OutcomeDuplicate)
		return nil
	}
	if err != nil {
		s.log.Errorw("Failed to process webhook event", "error", err, "eventID", event.ID, "eventType", event.Type)
		s.metrics.IncWebhookEvent(event.Type, metrics.OutcomeFailed)
		return err
	}

	s.metrics.IncWebhookEvent(event.Type, outcome)
	s.metrics.ObserveWebhookDuration(event.Type, time.Since(start).Seconds())
	s.log.Infow("Webhook event processed",
		"eventID", event.ID,
		"eventType", event.Type,
		"outcome", outcome,
		"providerCreatedAt", event.CreatedAt,
	)

	if updated != nil {
		s.afterCommit(ctx, event, updated)
	}
	return nil
}

// dispatch направляет событие ровно в один обработчик по его виду.
// Обработчики - полные идемпотентные перезаписи принадлежащих им полей,
// поэтому порядок доставки от транспорта не требуется.
func (s *WebhookService) dispatch(ctx context.Context, event *domain.ProviderEvent) (*domain.Subscription, error) {
	switch event.Kind {
	case domain.EventKindSubscriptionCreated, domain.EventKindSubscriptionUpdated:
		return s.applySubscriptionChange(ctx, event)
	case domain.EventKindSubscriptionDeleted:
		return s.applySubscriptionDeleted(ctx, event)
	case domain.EventKindInvoicePaymentSucceeded:
		return s.applyPaymentSucceeded(ctx, event)
	case domain.EventKindInvoicePaymentFailed:
		return s.applyPaymentFailed(ctx, event)
	default:
		s.log.Infow("Unhandled webhook event type", "eventID", event.ID, "eventType", event.Type)
		return nil, nil
	}
}

// applySubscriptionChange обрабатывает subscription.created и
// subscription.updated одинаково: находит локальную подписку и перезаписывает
// тариф, статус, цену, период и флаг отмены значениями из события.
// Если строки еще нет, но метаданные называют пользователя, строка создается
// прямо здесь: checkout через этот сервис мог быть пропущен (оплата ссылкой,
// миграция с другого аккаунта), а вебхук - единственный оставшийся канал.
func (s *WebhookService) applySubscriptionChange(ctx context.Context, event *domain.ProviderEvent) (*domain.Subscription, error) {
	data := event.Subscription

	sub, err := s.resolveSubscription(ctx, event, data)
	if err != nil {
		return nil, err
	}

	created := false
	if sub == nil {
		created = true
		sub = &domain.Subscription{
			ID:     uuid.NewString(),
			UserID: data.UserID,
		}
	}

	sub.Tier = s.plans.TierForPriceID(data.PriceID)
	sub.Status = s.plans.StatusForExternal(data.Status)
	sub.StripeSubscriptionID = data.StripeSubscriptionID
	sub.StripePriceID = data.PriceID
	sub.CancelAtPeriodEnd = data.CancelAtPeriodEnd
	if data.StripeCustomerID != "" {
		sub.StripeCustomerID = data.StripeCustomerID
	}
	sub.CurrentPeriodStart = epochToTime(data.PeriodStart)
	sub.CurrentPeriodEnd = epochToTime(data.PeriodEnd)

	if created {
		err = s.subs.Create(ctx, sub)
	} else {
		err = s.subs.Update(ctx, sub)
	}
	if err != nil {
		return nil, err
	}

	s.log.Infow("Subscription reconciled",
		"userID", sub.UserID,
		"tier", sub.Tier,
		"status", sub.Status,
		"stripeSubscriptionID", sub.StripeSubscriptionID,
		"rowCreated", created,
	)
	return sub, nil
}

// applySubscriptionDeleted возвращает пользователя на FREE.
func (s *WebhookService) applySubscriptionDeleted(ctx context.Context, event *domain.ProviderEvent) (*domain.Subscription, error) {
	data := event.Subscription

	sub, err := s.subs.GetByStripeSubscriptionID(ctx, data.StripeSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewReconciliationGap(event.ID, event.Type, data.StripeSubscriptionID)
		}
		return nil, err
	}

	sub.Tier = domain.TierFree
	sub.Status = domain.StatusCanceled
	sub.StripeSubscriptionID = ""
	sub.StripePriceID = ""
	sub.CancelAtPeriodEnd = false
	sub.CurrentPeriodStart = nil
	sub.CurrentPeriodEnd = nil

	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.log.Infow("Subscription canceled, user downgraded to FREE", "userID", sub.UserID)
	return sub, nil
}

// applyPaymentSucceeded добавляет запись о счете с оплаченной суммой.
// Статус подписки не меняется: его ведут события subscription.*.
func (s *WebhookService) applyPaymentSucceeded(ctx context.Context, event *domain.ProviderEvent) (*domain.Subscription, error) {
	data := event.Invoice

	sub, err := s.subs.GetByStripeSubscriptionID(ctx, data.StripeSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewReconciliationGap(event.ID, event.Type, data.StripeSubscriptionID)
		}
		return nil, err
	}

	if err := s.appendInvoice(ctx, sub, data, data.AmountPaidCents); err != nil {
		return nil, err
	}

	s.log.Infow("Invoice payment recorded",
		"userID", sub.UserID,
		"stripeInvoiceID", data.StripeInvoiceID,
		"amountCents", data.AmountPaidCents,
	)
	return sub, nil
}

// applyPaymentFailed переводит подписку в PAST_DUE и добавляет запись о счете
// с суммой к оплате.
func (s *WebhookService) applyPaymentFailed(ctx context.Context, event *domain.ProviderEvent) (*domain.Subscription, error) {
	data := event.Invoice

	sub, err := s.subs.GetByStripeSubscriptionID(ctx, data.StripeSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewReconciliationGap(event.ID, event.Type, data.StripeSubscriptionID)
		}
		return nil, err
	}

	sub.Status = domain.StatusPastDue
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.appendInvoice(ctx, sub, data, data.AmountDueCents); err != nil {
		return nil, err
	}

	s.log.Warnw("Invoice payment failed, subscription marked PAST_DUE",
		"userID", sub.UserID,
		"stripeInvoiceID", data.StripeInvoiceID,
		"amountDueCents", data.AmountDueCents,
	)
	return sub, nil
}

// resolveSubscription находит локальную подписку для события subscription.*.
// Сначала по внешнему идентификатору подписки, затем по user_id из метаданных:
// updated может прийти раньше created, поэтому оба пути допустимы для обоих
// видов. Если строки нет, но метаданные называют пользователя, возвращается
// (nil, nil): вызывающий создает строку из полей события. Пробел реконсиляции
// остается только для событий без user_id в метаданных - их не к кому
// привязать.
func (s *WebhookService) resolveSubscription(ctx context.Context, event *domain.ProviderEvent, data *domain.SubscriptionEvent) (*domain.Subscription, error) {
	sub, err := s.subs.GetByStripeSubscriptionID(ctx, data.StripeSubscriptionID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if data.UserID == "" {
		return nil, domain.NewReconciliationGap(event.ID, event.Type, data.StripeSubscriptionID)
	}

	sub, err = s.subs.GetByUserID(ctx, data.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// appendInvoice добавляет append-only запись о счете. Повторная доставка
// того же счета - no-op за счет уникальности stripe_invoice_id.
func (s *WebhookService) appendInvoice(ctx context.Context, sub *domain.Subscription, data *domain.InvoiceEvent, amountCents int64) error {
	invoice := &domain.Invoice{
		ID:               uuid.NewString(),
		SubscriptionID:   sub.ID,
		StripeInvoiceID:  data.StripeInvoiceID,
		AmountCents:      amountCents,
		Currency:         data.Currency,
		Status:           data.Status,
		HostedInvoiceURL: data.HostedInvoiceURL,
		InvoicePDF:       data.InvoicePDF,
		CreatedAt:        time.Now(),
	}

	err := s.invoices.Create(ctx, invoice)
	if errors.Is(err, repository.ErrDuplicate) {
		s.log.Debugw("Invoice already recorded", "stripeInvoiceID", data.StripeInvoiceID)
		return nil
	}
	return err
}

// afterCommit побочные эффекты после фиксации транзакции: сброс кеша и
// публикация события в Kafka. Оба не влияют на результат обработки.
func (s *WebhookService) afterCommit(ctx context.Context, event *domain.ProviderEvent, sub *domain.Subscription) {
	if s.cache != nil {
		s.cache.InvalidateUser(ctx, sub.UserID)
	}

	topic := kafka.TopicSubscriptionUpdated
	if event.Kind == domain.EventKindInvoicePaymentFailed {
		topic = kafka.TopicPaymentFailed
	}

	billingEvent := &domain.BillingEvent{
		UserID:               sub.UserID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		Tier:                 sub.Tier,
		Status:               sub.Status,
		EventType:            event.Type,
		OccurredAt:           time.Now(),
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.producer.PublishBillingEvent(pubCtx, topic, billingEvent); err != nil {
			s.log.Warnw("Failed to publish billing event", "error", err, "topic", topic, "userID", sub.UserID)
		}
	}()
}

// epochToTime переводит epoch seconds в *time.Time (0 - отсутствие значения).
func epochToTime(epoch int64) *time.Time {
	if epoch == 0 {
		return nil
	}
	t := time.Unix(epoch, 0)
	return &t
}
