package billing

import (
	"fmt"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
)

// FallbackCounter считает срабатывания fail-open маппинга статусов,
// чтобы дрейф словаря провайдера был наблюдаемым. Может быть nil.
type FallbackCounter interface {
	IncStatusFallback(externalStatus string)
}

// PlanResolver двунаправленное отображение между идентификаторами цен Stripe
// и внутренними тарифами, плюс перевод статусов Stripe во внутренние.
// Таблица цен задается конфигурацией: идентификаторы зависят от окружения.
type PlanResolver struct {
	priceByTier map[domain.Tier]string
	tierByPrice map[string]domain.Tier
	fallbacks   FallbackCounter
	log         *logger.Logger
}

// NewPlanResolver создает резолвер тарифов из сконфигурированных цен.
// Пустые идентификаторы допустимы: соответствующий тариф считается
// ненастроенным и PriceIDForTier вернет ошибку.
func NewPlanResolver(priceIDPro, priceIDPremium string, fallbacks FallbackCounter, log *logger.Logger) *PlanResolver {
	r := &PlanResolver{
		priceByTier: make(map[domain.Tier]string),
		tierByPrice: make(map[string]domain.Tier),
		fallbacks:   fallbacks,
		log:         log,
	}
	if priceIDPro != "" {
		r.priceByTier[domain.TierPro] = priceIDPro
		r.tierByPrice[priceIDPro] = domain.TierPro
	}
	if priceIDPremium != "" {
		r.priceByTier[domain.TierPremium] = priceIDPremium
		r.tierByPrice[priceIDPremium] = domain.TierPremium
	}
	return r
}

// PriceIDForTier возвращает идентификатор цены Stripe для тарифа.
// Отсутствие настроенной цены - жесткая ошибка конфигурации, а не тихий
// даунгрейд: checkout на такой тариф невозможен.
func (r *PlanResolver) PriceIDForTier(tier domain.Tier) (string, error) {
	priceID, ok := r.priceByTier[tier]
	if !ok || priceID == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrConfigurationMissing, tier)
	}
	return priceID, nil
}

// TierForPriceID возвращает тариф для идентификатора цены.
// Тотальна: пустой или неизвестный идентификатор дает FREE, никогда ошибку.
func (r *PlanResolver) TierForPriceID(priceID string) domain.Tier {
	if priceID == "" {
		return domain.TierFree
	}
	tier, ok := r.tierByPrice[priceID]
	if !ok {
		return domain.TierFree
	}
	return tier
}

// statusMap полная таблица перевода статусов Stripe во внутренние.
var statusMap = map[string]domain.SubscriptionStatus{
	"active":             domain.StatusActive,
	"past_due":           domain.StatusPastDue,
	"unpaid":             domain.StatusPastDue,
	"canceled":           domain.StatusCanceled,
	"incomplete":         domain.StatusIncomplete,
	"incomplete_expired": domain.StatusCanceled,
	"trialing":           domain.StatusTrialing,
	"paused":             domain.StatusPastDue,
}

// StatusForExternal переводит статус Stripe во внутренний статус.
// Тотальна: нераспознанный статус осознанно дает ACTIVE (fail-open:
// неизвестный код не должен заблокировать платящего пользователя),
// каждое срабатывание логируется и считается.
func (r *PlanResolver) StatusForExternal(externalStatus string) domain.SubscriptionStatus {
	if status, ok := statusMap[externalStatus]; ok {
		return status
	}

	r.log.Warnw("Unknown external subscription status, falling back to ACTIVE", "external_status", externalStatus)
	if r.fallbacks != nil {
		r.fallbacks.IncStatusFallback(externalStatus)
	}
	return domain.StatusActive
}
