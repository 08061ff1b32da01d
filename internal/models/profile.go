// Package models содержит доменные структуры шлюза: профиль пользователя
// с данными подписки, счётчики использования функций, беседы и сообщения.
package models

import "time"

// Статусы подписки, при которых доступ к платным функциям разрешён.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
)

// Profile представляет профиль пользователя с полями подписки.
// Читается из хранилища на каждый запрос и нигде не кэшируется.
type Profile struct {
	UserUID            string    // Уникальный идентификатор пользователя
	SubscriptionPlan   string    // Идентификатор тарифного плана
	SubscriptionActive bool      // Флаг активности подписки
	SubscriptionStatus string    // Статус подписки: active, trialing, canceled и пр.
	CreatedAt          time.Time // Дата создания профиля
}

// HasActiveSubscription проверяет, даёт ли подписка доступ к платным функциям.
func (p *Profile) HasActiveSubscription() bool {
	if !p.SubscriptionActive {
		return false
	}
	return p.SubscriptionStatus == SubscriptionStatusActive ||
		p.SubscriptionStatus == SubscriptionStatusTrialing
}

// PlanTier — явная классификация тарифа, вычисляемая один раз на границе
// модели данных вместо разбора строки плана в каждом месте вызова.
type PlanTier int

const (
	// TierFree — бесплатный тариф без подписки.
	TierFree PlanTier = iota
	// TierStandard — платный тариф с месячными лимитами.
	TierStandard
	// TierPremium — тариф без лимитов на функции.
	TierPremium
)

func (t PlanTier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierPremium:
		return "premium"
	default:
		return "free"
	}
}
