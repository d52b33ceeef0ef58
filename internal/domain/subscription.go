package domain

import "time"

// Tier уровень тарифа внутри продукта.
type Tier string

const (
	TierFree    Tier = "FREE"
	TierPro     Tier = "PRO"
	TierPremium Tier = "PREMIUM"
)

// SubscriptionStatus внутренний статус подписки.
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "ACTIVE"
	StatusPastDue    SubscriptionStatus = "PAST_DUE"
	StatusCanceled   SubscriptionStatus = "CANCELED"
	StatusIncomplete SubscriptionStatus = "INCOMPLETE"
	StatusTrialing   SubscriptionStatus = "TRIALING"
)

// Subscription представляет подписку пользователя в системе.
// Инвариант: не более одной записи на пользователя; StripeSubscriptionID
// уникален среди всех подписок, когда заполнен.
type Subscription struct {
	ID                   string             `db:"id" json:"id"`
	UserID               string             `db:"user_id" json:"user_id"`
	Tier                 Tier               `db:"tier" json:"tier"`
	Status               SubscriptionStatus `db:"status" json:"status"`
	StripeCustomerID     string             `db:"stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID string             `db:"stripe_subscription_id" json:"stripe_subscription_id"`
	StripePriceID        string             `db:"stripe_price_id" json:"stripe_price_id"`
	CurrentPeriodStart   *time.Time         `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time         `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool               `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// Invoice запись о счете, созданная обработчиком вебхука.
// Append-only: после создания не изменяется.
type Invoice struct {
	ID               string    `db:"id" json:"id"`
	SubscriptionID   string    `db:"subscription_id" json:"subscription_id"`
	StripeInvoiceID  string    `db:"stripe_invoice_id" json:"stripe_invoice_id"`
	AmountCents      int64     `db:"amount_cents" json:"amount_cents"`
	Currency         string    `db:"currency" json:"currency"`
	Status           string    `db:"status" json:"status"`
	HostedInvoiceURL string    `db:"hosted_invoice_url" json:"hosted_invoice_url"`
	InvoicePDF       string    `db:"invoice_pdf" json:"invoice_pdf"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent запись журнала идемпотентности: присутствие записи означает,
// что побочные эффекты события уже полностью применены.
type ProcessedEvent struct {
	ID            string    `db:"id" json:"id"`
	StripeEventID string    `db:"stripe_event_id" json:"stripe_event_id"`
	EventType     string    `db:"event_type" json:"event_type"`
	ProcessedAt   time.Time `db:"processed_at" json:"processed_at"`
}

// User доступные биллингу данные пользователя (read-only).
type User struct {
	ID    string `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
}

// Entitlements числовые ограничения, привязанные к тарифу.
// -1 означает "без ограничений".
type Entitlements struct {
	CardLimit              int `json:"card_limit"`
	ContactLimit           int `json:"contact_limit"`
	AnalyticsRetentionDays int `json:"analytics_retention_days"`
}

// BillingEvent событие жизненного цикла биллинга, публикуемое в Kafka.
type BillingEvent struct {
	UserID               string             `json:"user_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	Tier                 Tier               `json:"tier"`
	Status               SubscriptionStatus `json:"status"`
	EventType            string             `json:"event_type"`
	OccurredAt           time.Time          `json:"occurred_at"`
}
