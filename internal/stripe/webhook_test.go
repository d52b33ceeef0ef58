package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload строит заголовок Stripe-Signature так же, как это делает Stripe:
// HMAC-SHA256 по строке "<timestamp>.<payload>".
func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func subscriptionEventPayload(eventType string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": "%s",
		"created": 1700000000,
		"data": {
			"object": {
				"id": "sub_test_1",
				"object": "subscription",
				"customer": "cus_test_1",
				"status": "active",
				"current_period_start": 1700000000,
				"current_period_end": 1702592000,
				"cancel_at_period_end": false,
				"metadata": {"user_id": "u1", "tier": "PRO"},
				"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "price": {"id": "price_pro_123", "object": "price"}}]}
			}
		}
	}`, eventType))
}

func invoiceEventPayload(eventType string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_2",
		"type": "%s",
		"created": 1700000100,
		"data": {
			"object": {
				"id": "in_test_1",
				"object": "invoice",
				"subscription": "sub_test_1",
				"amount_paid": 1900,
				"amount_due": 1900,
				"currency": "usd",
				"status": "paid",
				"hosted_invoice_url": "https://invoice.stripe.com/i/in_test_1",
				"invoice_pdf": "https://invoice.stripe.com/i/in_test_1/pdf"
			}
		}
	}`, eventType))
}

func TestVerifyAndParseSubscriptionEvent(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret, logger.New(logger.ERROR))
	payload := subscriptionEventPayload("customer.subscription.created")

	ev, err := v.VerifyAndParse(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, "evt_test_1", ev.ID)
	assert.Equal(t, domain.EventKindSubscriptionCreated, ev.Kind)
	require.NotNil(t, ev.Subscription)
	assert.Equal(t, "sub_test_1", ev.Subscription.StripeSubscriptionID)
	assert.Equal(t, "cus_test_1", ev.Subscription.StripeCustomerID)
	assert.Equal(t, "price_pro_123", ev.Subscription.PriceID)
	assert.Equal(t, "active", ev.Subscription.Status)
	assert.Equal(t, "u1", ev.Subscription.UserID)
	assert.Equal(t, "PRO", ev.Subscription.TierHint)
	assert.Equal(t, int64(1700000000), ev.Subscription.PeriodStart)
	assert.Equal(t, int64(1702592000), ev.Subscription.PeriodEnd)
	assert.False(t, ev.Subscription.CancelAtPeriodEnd)
}

func TestVerifyAndParseInvoiceEvent(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret, logger.New(logger.ERROR))
	payload := invoiceEventPayload("invoice.payment_failed")

	ev, err := v.VerifyAndParse(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, domain.EventKindInvoicePaymentFailed, ev.Kind)
	require.NotNil(t, ev.Invoice)
	assert.Equal(t, "in_test_1", ev.Invoice.StripeInvoiceID)
	assert.Equal(t, "sub_test_1", ev.Invoice.StripeSubscriptionID)
	assert.Equal(t, int64(1900), ev.Invoice.AmountDueCents)
	assert.Equal(t, "usd", ev.Invoice.Currency)
}

func TestVerifyAndParseUnknownKind(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret, logger.New(logger.ERROR))
	payload := []byte(`{"id": "evt_test_3", "type": "charge.dispute.created", "created": 1700000200, "data": {"object": {"id": "dp_1"}}}`)

	ev, err := v.VerifyAndParse(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, domain.EventKindOther, ev.Kind)
	assert.Equal(t, "charge.dispute.created", ev.Type)
	assert.Nil(t, ev.Subscription)
	assert.Nil(t, ev.Invoice)
}

func TestVerifyAndParseRejectsTamperedBody(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret, logger.New(logger.ERROR))
	payload := subscriptionEventPayload("customer.subscription.created")
	header := signPayload(t, payload, testWebhookSecret)

	tampered := []byte(string(payload[:len(payload)-2]) + " }")
	_, err := v.VerifyAndParse(tampered, header)
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
}

func TestVerifyAndParseRejectsWrongSecret(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret, logger.New(logger.ERROR))
	payload := subscriptionEventPayload("customer.subscription.updated")

	_, err := v.VerifyAndParse(payload, signPayload(t, payload, "whsec_other"))
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
}
