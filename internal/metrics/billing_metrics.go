package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics метрики биллингового сервиса.
type BillingMetrics interface {
	IncWebhookEvent(eventType, outcome string)
	IncCheckoutStarted(tier string)
	IncStatusFallback(externalStatus string)
	ObserveWebhookDuration(eventType string, seconds float64)
}

// Возможные исходы обработки вебхука.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeGap       = "gap"
	OutcomeFailed    = "failed"
	OutcomeUnhandled = "unhandled"
)

type billingMetrics struct {
	webhookEvents   *prometheus.CounterVec
	checkoutStarted *prometheus.CounterVec
	statusFallbacks *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
}

// NewBillingMetrics регистрирует метрики в переданном registry.
func NewBillingMetrics(registry prometheus.Registerer) BillingMetrics {
	factory := promauto.With(registry)

	return &billingMetrics{
		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Webhook events by Stripe event type and processing outcome.",
		}, []string{"event_type", "outcome"}),
		checkoutStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_checkout_started_total",
			Help: "Checkout sessions created, by tier.",
		}, []string{"tier"}),
		statusFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_status_fallbacks_total",
			Help: "Unknown provider subscription statuses mapped to the fallback status.",
		}, []string{"external_status"}),
		webhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_webhook_duration_seconds",
			Help:    "Webhook processing duration by Stripe event type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
}

func (m *billingMetrics) IncWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *billingMetrics) IncCheckoutStarted(tier string) {
	m.checkoutStarted.WithLabelValues(tier).Inc()
}

func (m *billingMetrics) IncStatusFallback(externalStatus string) {
	m.statusFallbacks.WithLabelValues(externalStatus).Inc()
}

func (m *billingMetrics) ObserveWebhookDuration(eventType string, seconds float64) {
	m.webhookDuration.WithLabelValues(eventType).Observe(seconds)
}

// NoOpMetrics заглушка для тестов.
type NoOpMetrics struct{}

func (NoOpMetrics) IncWebhookEvent(eventType, outcome string) {}

func (NoOpMetrics) IncCheckoutStarted(tier string) {}

func (NoOpMetrics) IncStatusFallback(externalStatus string) {}

func (NoOpMetrics) ObserveWebhookDuration(eventType string, seconds float64) {}
