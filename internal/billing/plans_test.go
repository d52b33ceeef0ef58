package billing

import (
	"errors"
	"testing"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fallbackRecorder struct {
	statuses []string
}

func (f *fallbackRecorder) IncStatusFallback(externalStatus string) {
	f.statuses = append(f.statuses, externalStatus)
}

func newTestResolver(fallbacks FallbackCounter) *PlanResolver {
	return NewPlanResolver("price_pro_123", "price_premium_456", fallbacks, logger.New(logger.ERROR))
}

func TestPriceIDForTier(t *testing.T) {
	r := newTestResolver(nil)

	priceID, err := r.PriceIDForTier(domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, "price_pro_123", priceID)

	priceID, err = r.PriceIDForTier(domain.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, "price_premium_456", priceID)
}

func TestPriceIDForTierNotConfigured(t *testing.T) {
	// FREE никогда не имеет цены; PREMIUM не настроен в этом резолвере
	r := NewPlanResolver("price_pro_123", "", nil, logger.New(logger.ERROR))

	_, err := r.PriceIDForTier(domain.TierFree)
	assert.True(t, errors.Is(err, domain.ErrConfigurationMissing))

	_, err = r.PriceIDForTier(domain.TierPremium)
	assert.True(t, errors.Is(err, domain.ErrConfigurationMissing))
}

func TestTierForPriceIDTotal(t *testing.T) {
	r := newTestResolver(nil)

	tests := []struct {
		name    string
		priceID string
		want    domain.Tier
	}{
		{"configured pro price", "price_pro_123", domain.TierPro},
		{"configured premium price", "price_premium_456", domain.TierPremium},
		{"unknown price", "price_from_old_deploy", domain.TierFree},
		{"empty price", "", domain.TierFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.TierForPriceID(tt.priceID))
		})
	}
}

func TestStatusForExternal(t *testing.T) {
	r := newTestResolver(nil)

	tests := []struct {
		external string
		want     domain.SubscriptionStatus
	}{
		{"active", domain.StatusActive},
		{"past_due", domain.StatusPastDue},
		{"unpaid", domain.StatusPastDue},
		{"canceled", domain.StatusCanceled},
		{"incomplete", domain.StatusIncomplete},
		{"incomplete_expired", domain.StatusCanceled},
		{"trialing", domain.StatusTrialing},
	}

	for _, tt := range tests {
		t.Run(tt.external, func(t *testing.T) {
			assert.Equal(t, tt.want, r.StatusForExternal(tt.external))
		})
	}
}

func TestStatusForExternalFailsOpen(t *testing.T) {
	rec := &fallbackRecorder{}
	r := newTestResolver(rec)

	// Никогда не бросает: нераспознанный статус дает ACTIVE и учитывается
	assert.Equal(t, domain.StatusActive, r.StatusForExternal("some_future_status"))
	assert.Equal(t, domain.StatusActive, r.StatusForExternal(""))
	assert.Equal(t, []string{"some_future_status", ""}, rec.statuses)
}
