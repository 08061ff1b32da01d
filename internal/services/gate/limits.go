package gate

import "github.com/magabrotheeeer/chat-gateway/internal/models"

func intPtr(v int) *int { return &v }

// PlanLimits — статическая таблица лимитов функций по тарифам.
// nil означает безлимит. Таблица неизменна во время работы процесса,
// новые тарифы добавляются деплоем.
var PlanLimits = map[string]models.FeatureLimits{
	"free":            {VoiceSeconds: intPtr(120), InsightsCount: intPtr(3)},
	"10_monthly":      {VoiceSeconds: intPtr(600), InsightsCount: intPtr(30)},
	"20_annual":       {VoiceSeconds: intPtr(600), InsightsCount: intPtr(30)},
	"premium_monthly": {VoiceSeconds: nil, InsightsCount: nil},
	"premium_annual":  {VoiceSeconds: nil, InsightsCount: nil},
}

// ResolveTier классифицирует тариф один раз на границе модели данных,
// вместо разбора строки идентификатора в каждом месте вызова.
func ResolveTier(planID string) models.PlanTier {
	switch planID {
	case "premium_monthly", "premium_annual":
		return models.TierPremium
	case "10_monthly", "20_annual":
		return models.TierStandard
	default:
		return models.TierFree
	}
}
