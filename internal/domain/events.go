package domain

import "time"

// EventKind закрытое множество распознаваемых видов событий провайдера.
// Диспетчеризация идет по этому перечислению, а не по сырым строкам типов.
type EventKind int

const (
	// EventKindOther все нераспознанные типы событий (no-op).
	EventKindOther EventKind = iota
	EventKindSubscriptionCreated
	EventKindSubscriptionUpdated
	EventKindSubscriptionDeleted
	EventKindInvoicePaymentSucceeded
	EventKindInvoicePaymentFailed
)

// String возвращает читаемое имя вида события.
func (k EventKind) String() string {
	switch k {
	case EventKindSubscriptionCreated:
		return "subscription_created"
	case EventKindSubscriptionUpdated:
		return "subscription_updated"
	case EventKindSubscriptionDeleted:
		return "subscription_deleted"
	case EventKindInvoicePaymentSucceeded:
		return "invoice_payment_succeeded"
	case EventKindInvoicePaymentFailed:
		return "invoice_payment_failed"
	default:
		return "other"
	}
}

// ProviderEvent проверенное и разобранное событие провайдера.
// Для видов подписки заполнено поле Subscription, для счетов - Invoice.
type ProviderEvent struct {
	ID        string
	Kind      EventKind
	Type      string // сырой тип события провайдера
	CreatedAt time.Time

	Subscription *SubscriptionEvent
	Invoice      *InvoiceEvent
}

// SubscriptionEvent данные события подписки.
// UserID и TierHint приходят из метаданных, проставленных при checkout.
type SubscriptionEvent struct {
	StripeSubscriptionID string
	StripeCustomerID     string
	PriceID              string
	Status               string
	UserID               string
	TierHint             string
	PeriodStart          int64 // epoch seconds
	PeriodEnd            int64 // epoch seconds
	CancelAtPeriodEnd    bool
}

// InvoiceEvent данные события счета.
type InvoiceEvent struct {
	StripeInvoiceID      string
	StripeSubscriptionID string
	AmountPaidCents      int64
	AmountDueCents       int64
	Currency             string
	Status               string
	HostedInvoiceURL     string
	InvoicePDF           string
}
