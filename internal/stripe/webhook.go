package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Сырые типы событий Stripe, распознаваемые движком.
const (
	eventTypeSubscriptionCreated = "customer.subscription.created"
	eventTypeSubscriptionUpdated = "customer.subscription.updated"
	eventTypeSubscriptionDeleted = "customer.subscription.deleted"
	eventTypePaymentSucceeded    = "invoice.payment_succeeded"
	eventTypePaymentFailed       = "invoice.payment_failed"
)

// WebhookVerifier проверяет подлинность входящего события и разбирает его
// в закрытый вариантный тип домена.
type WebhookVerifier interface {
	// VerifyAndParse проверяет подпись по точным полученным байтам (до любого
	// JSON-разбора) и возвращает разобранное событие.
	// Несовпадение подписи - domain.ErrInvalidSignature.
	VerifyAndParse(payload []byte, sigHeader string) (*domain.ProviderEvent, error)
}

// webhookVerifier реализует WebhookVerifier через общий секрет Stripe.
type webhookVerifier struct {
	secret string
	log    *logger.Logger
}

// NewWebhookVerifier создает новый верификатор вебхуков.
func NewWebhookVerifier(secret string, log *logger.Logger) WebhookVerifier {
	return &webhookVerifier{
		secret: secret,
		log:    log,
	}
}

// VerifyAndParse проверяет подпись и разбирает событие.
func (v *webhookVerifier) VerifyAndParse(payload []byte, sigHeader string) (*domain.ProviderEvent, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not set", domain.ErrProviderUnavailable)
	}

	// Подпись считается по сырому телу: повторная сериализация не обязана
	// воспроизводить подписанные байты.
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	parsed := &domain.ProviderEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		CreatedAt: time.Unix(event.Created, 0),
	}

	switch string(event.Type) {
	case eventTypeSubscriptionCreated, eventTypeSubscriptionUpdated, eventTypeSubscriptionDeleted:
		sub, err := parseSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		parsed.Subscription = sub
		switch string(event.Type) {
		case eventTypeSubscriptionCreated:
			parsed.Kind = domain.EventKindSubscriptionCreated
		case eventTypeSubscriptionUpdated:
			parsed.Kind = domain.EventKindSubscriptionUpdated
		default:
			parsed.Kind = domain.EventKindSubscriptionDeleted
		}
	case eventTypePaymentSucceeded, eventTypePaymentFailed:
		inv, err := parseInvoice(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		parsed.Invoice = inv
		if string(event.Type) == eventTypePaymentSucceeded {
			parsed.Kind = domain.EventKindInvoicePaymentSucceeded
		} else {
			parsed.Kind = domain.EventKindInvoicePaymentFailed
		}
	default:
		parsed.Kind = domain.EventKindOther
	}

	return parsed, nil
}

// parseSubscription разбирает объект подписки из данных события.
func parseSubscription(raw json.RawMessage) (*domain.SubscriptionEvent, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription event data: %w", err)
	}

	out := &domain.SubscriptionEvent{
		StripeSubscriptionID: sub.ID,
		Status:               string(sub.Status),
		PeriodStart:          sub.CurrentPeriodStart,
		PeriodEnd:            sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.StripeCustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.Metadata != nil {
		out.UserID = sub.Metadata[MetadataUserIDKey]
		out.TierHint = sub.Metadata[MetadataTierKey]
	}
	return out, nil
}

// parseInvoice разбирает объект счета из данных события.
func parseInvoice(raw json.RawMessage) (*domain.InvoiceEvent, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse invoice event data: %w", err)
	}

	out := &domain.InvoiceEvent{
		StripeInvoiceID:  inv.ID,
		AmountPaidCents:  inv.AmountPaid,
		AmountDueCents:   inv.AmountDue,
		Currency:         string(inv.Currency),
		Status:           string(inv.Status),
		HostedInvoiceURL: inv.HostedInvoiceURL,
		InvoicePDF:       inv.InvoicePDF,
	}
	if inv.Subscription != nil {
		out.StripeSubscriptionID = inv.Subscription.ID
	}
	return out, nil
}
