package billing

import (
	"testing"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEntitlementsForTier(t *testing.T) {
	free := EntitlementsForTier(domain.TierFree)
	assert.Equal(t, 3, free.CardLimit)
	assert.Equal(t, 100, free.ContactLimit)
	assert.Equal(t, 7, free.AnalyticsRetentionDays)

	pro := EntitlementsForTier(domain.TierPro)
	assert.Equal(t, 25, pro.CardLimit)
	assert.Equal(t, 5000, pro.ContactLimit)
	assert.Equal(t, 90, pro.AnalyticsRetentionDays)

	premium := EntitlementsForTier(domain.TierPremium)
	assert.Equal(t, Unlimited, premium.CardLimit)
	assert.Equal(t, Unlimited, premium.ContactLimit)
	assert.Equal(t, 365, premium.AnalyticsRetentionDays)
}

func TestEntitlementsForUnknownTier(t *testing.T) {
	// Неизвестный тариф не должен давать больше, чем FREE
	e := EntitlementsForTier(domain.Tier("ENTERPRISE"))
	assert.Equal(t, EntitlementsForTier(domain.TierFree), e)
}
