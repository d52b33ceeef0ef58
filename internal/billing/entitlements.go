package billing

import "github.com/Dhoini/Billing-service/internal/domain"

// Unlimited сентинел "без ограничений" в таблице лимитов.
const Unlimited = -1

// entitlementsByTier статическая таблица лимитов по тарифам.
var entitlementsByTier = map[domain.Tier]domain.Entitlements{
	domain.TierFree: {
		CardLimit:              3,
		ContactLimit:           100,
		AnalyticsRetentionDays: 7,
	},
	domain.TierPro: {
		CardLimit:              25,
		ContactLimit:           5000,
		AnalyticsRetentionDays: 90,
	},
	domain.TierPremium: {
		CardLimit:              Unlimited,
		ContactLimit:           Unlimited,
		AnalyticsRetentionDays: 365,
	},
}

// EntitlementsForTier возвращает лимиты использования для тарифа.
// Тотальна и не имеет режимов отказа: неизвестный тариф дает лимиты FREE.
func EntitlementsForTier(tier domain.Tier) domain.Entitlements {
	if e, ok := entitlementsByTier[tier]; ok {
		return e
	}
	return entitlementsByTier[domain.TierFree]
}
