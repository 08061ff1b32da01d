package models

import "fmt"

// FeatureType — тип учитываемой функции.
type FeatureType string

const (
	// FeatureVoiceSeconds — секунды голосовых функций (STT и TTS).
	FeatureVoiceSeconds FeatureType = "voice_seconds"
	// FeatureInsightsCount — количество сгенерированных инсайтов.
	FeatureInsightsCount FeatureType = "insights_count"
)

// Validate проверяет, что тип функции известен.
func (f FeatureType) Validate() error {
	switch f {
	case FeatureVoiceSeconds, FeatureInsightsCount:
		return nil
	}
	return fmt.Errorf("unknown feature type %q", f)
}

// FeatureLimits задаёт месячные лимиты тарифного плана.
// nil означает отсутствие лимита (безлимитный план).
type FeatureLimits struct {
	VoiceSeconds  *int
	InsightsCount *int
}

// Limit возвращает лимит для конкретной функции.
func (l FeatureLimits) Limit(feature FeatureType) *int {
	switch feature {
	case FeatureVoiceSeconds:
		return l.VoiceSeconds
	case FeatureInsightsCount:
		return l.InsightsCount
	}
	return nil
}

// FeatureUsage представляет счётчик использования функции пользователем
// за расчётный период. Создаётся неявно при первом инкременте,
// никогда не уменьшается.
type FeatureUsage struct {
	UserUID     string      // Идентификатор пользователя
	FeatureType FeatureType // Тип функции
	Period      string      // Период в формате YYYY-MM
	UsageAmount int         // Накопленное использование
}
