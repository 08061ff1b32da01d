// Package usage содержит учёт использования функций: инкремент счётчиков
// с ограниченным повтором и сводку использования за текущий период.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/chat-gateway/internal/lib/period"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/metrics"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/services/gate"
)

const (
	maxAttempts = 3
	baseBackoff = 1000 * time.Millisecond
	maxBackoff  = 5000 * time.Millisecond
)

// Repository определяет методы хранилища для учёта использования.
type Repository interface {
	ReadProfile(ctx context.Context, userUID string) (*models.Profile, error)
	ListUsage(ctx context.Context, userUID string, period string) ([]*models.FeatureUsage, error)
	IncrementUsage(ctx context.Context, userUID string, feature models.FeatureType, amount int, period string) error
}

// Service реализует учёт использования функций.
type Service struct {
	repo  Repository
	log   *slog.Logger
	sleep func(time.Duration)
}

// New создает новый Service учёта использования.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, sleep: time.Sleep}
}

// FeatureSummary — использование одной функции с лимитом тарифа.
type FeatureSummary struct {
	Used      int  `json:"used"`
	Limit     *int `json:"limit"`
	Remaining *int `json:"remaining"`
}

// Summary — сводка использования пользователя за текущий период.
type Summary struct {
	Period             string         `json:"period"`
	SubscriptionActive bool           `json:"subscription_active"`
	SubscriptionPlan   string         `json:"subscription_plan"`
	VoiceSeconds       FeatureSummary `json:"voice_seconds"`
	InsightsCount      FeatureSummary `json:"insights_count"`
}

// IncrementFeatureUsage увеличивает счётчик функции за текущий период.
// Вызывается после успешного использования функции; при постоянном сбое
// ошибка логируется и проглатывается: недосчёт принят как осознанный риск,
// вызывающая сторона уже получила успешный ответ.
func (s *Service) IncrementFeatureUsage(ctx context.Context, userUID string, feature models.FeatureType, amount int) {
	if userUID == "" || uuid.Validate(userUID) != nil {
		s.log.Error("increment skipped: invalid user id")
		return
	}
	if amount <= 0 {
		s.log.Error("increment skipped: non-positive amount", slog.Int("amount", amount))
		return
	}
	if err := feature.Validate(); err != nil {
		s.log.Error("increment skipped", sl.Err(err))
		return
	}

	currentPeriod := period.Current()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.repo.IncrementUsage(ctx, userUID, feature, amount, currentPeriod)
		if lastErr == nil {
			if attempt > 1 {
				s.log.Info("usage increment succeeded after retry",
					slog.Int("attempt", attempt), slog.String("feature", string(feature)))
			}
			return
		}
		if !isRetryable(lastErr) {
			s.log.Error("usage increment failed with terminal error", sl.Err(lastErr))
			return
		}
		if attempt < maxAttempts {
			metrics.UsageIncrementRetries.Inc()
			s.sleep(backoff(attempt))
		}
	}
	s.log.Error("usage increment failed after retries",
		slog.Int("attempts", maxAttempts), sl.Err(lastErr))
}

// GetSummary возвращает использование и лимиты пользователя за текущий период.
func (s *Service) GetSummary(ctx context.Context, userUID string) (*Summary, error) {
	profile, err := s.repo.ReadProfile(ctx, userUID)
	if err != nil {
		return nil, err
	}

	currentPeriod := period.Current()
	entries, err := s.repo.ListUsage(ctx, userUID, currentPeriod)
	if err != nil {
		return nil, err
	}

	used := map[models.FeatureType]int{}
	for _, e := range entries {
		used[e.FeatureType] = e.UsageAmount
	}

	limits, ok := gate.PlanLimits[profile.SubscriptionPlan]
	if !ok {
		limits = gate.PlanLimits["free"]
	}

	return &Summary{
		Period:             currentPeriod,
		SubscriptionActive: profile.HasActiveSubscription(),
		SubscriptionPlan:   profile.SubscriptionPlan,
		VoiceSeconds:       featureSummary(used[models.FeatureVoiceSeconds], limits.VoiceSeconds),
		InsightsCount:      featureSummary(used[models.FeatureInsightsCount], limits.InsightsCount),
	}, nil
}

func featureSummary(used int, limit *int) FeatureSummary {
	fs := FeatureSummary{Used: used, Limit: limit}
	if limit != nil {
		r := max(*limit-used, 0)
		fs.Remaining = &r
	}
	return fs
}

// backoff возвращает задержку перед повтором: 1000 * 2^(attempt-1) мс,
// не более 5000 мс.
func backoff(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// isRetryable отделяет временные инфраструктурные сбои от терминальных
// ошибок. Повторяются только сбои соединения и таймауты.
func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused", "connection reset", "broken pipe",
		"timeout", "deadline exceeded", "temporarily unavailable", "too many connections",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
