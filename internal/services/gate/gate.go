// Package gate содержит бизнес-логику проверки лимитов функций:
// таблицу тарифов, проверку доступа и атомарное резервирование квоты.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/chat-gateway/internal/lib/period"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/metrics"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"
)

// Машиночитаемые коды отказа проверки доступа.
const (
	CodeInvalidUserID  = "INVALID_USER_ID"
	CodeInvalidAmount  = "INVALID_AMOUNT"
	CodeInvalidFeature = "INVALID_FEATURE"
	CodeProfileError   = "PROFILE_ERROR"
	CodeNoSubscription = "NO_SUBSCRIPTION"
	CodeUnknownPlan    = "UNKNOWN_PLAN"
	CodeRPCError       = "RPC_ERROR"
	CodeLimitExceeded  = "LIMIT_EXCEEDED"
)

// Repository определяет методы хранилища, нужные проверке лимитов.
type Repository interface {
	// ReadProfile возвращает профиль пользователя с полями подписки.
	ReadProfile(ctx context.Context, userUID string) (*models.Profile, error)
	// ReadUsage возвращает накопленное использование функции за период.
	ReadUsage(ctx context.Context, userUID string, feature models.FeatureType, period string) (int, error)
	// IncrementUsage увеличивает счётчик без проверки лимита.
	IncrementUsage(ctx context.Context, userUID string, feature models.FeatureType, amount int, period string) error
	// CheckAndIncrementUsage выполняет проверку и инкремент одной атомарной операцией.
	CheckAndIncrementUsage(ctx context.Context, userUID string, feature models.FeatureType, amount, limit int, period string) (*repository.CheckAndIncrementResult, error)
}

// CheckResult — результат консультативной проверки доступа.
type CheckResult struct {
	Allowed   bool
	Remaining *int
	Limit     *int
	Reason    string
	ErrorCode string
}

// IncrementResult — результат атомарного резервирования квоты.
type IncrementResult struct {
	Success       bool
	PreviousUsage int
	NewUsage      int
	Remaining     *int
	Limit         *int
	Reason        string
	ErrorCode     string
}

// Service реализует проверку лимитов функций по тарифной таблице.
type Service struct {
	repo               Repository
	log                *slog.Logger
	freeTierSTTSeconds int
}

// New создает новый Service проверки лимитов.
func New(repo Repository, log *slog.Logger, freeTierSTTSeconds int) *Service {
	return &Service{
		repo:               repo,
		log:                log,
		freeTierSTTSeconds: freeTierSTTSeconds,
	}
}

func denied(code, reason string) CheckResult {
	return CheckResult{Allowed: false, ErrorCode: code, Reason: reason}
}

func validateGateInput(userUID string, amount int) (string, string) {
	if userUID == "" || uuid.Validate(userUID) != nil {
		return CodeInvalidUserID, "invalid user id"
	}
	if amount <= 0 {
		return CodeInvalidAmount, "requested amount must be a positive integer"
	}
	return "", ""
}

// CheckFeatureAccess выполняет консультативную проверку доступа к функции.
// Это чтение без резервирования: между проверкой и последующим инкрементом
// возможна гонка при параллельных запросах одного пользователя. Безопасный
// путь — AtomicCheckAndIncrement.
func (s *Service) CheckFeatureAccess(ctx context.Context, userUID string, feature models.FeatureType, amount int) (CheckResult, error) {
	if code, reason := validateGateInput(userUID, amount); code != "" {
		return denied(code, reason), nil
	}
	if err := feature.Validate(); err != nil {
		return denied(CodeInvalidFeature, err.Error()), nil
	}

	limit, res, ok := s.resolveLimit(ctx, userUID, feature)
	if !ok {
		return res, nil
	}
	if limit == nil {
		return CheckResult{Allowed: true}, nil
	}

	used, err := s.repo.ReadUsage(ctx, userUID, feature, period.Current())
	if err != nil {
		s.log.Error("failed to read feature usage", sl.Err(err))
		return denied(CodeRPCError, "unable to verify usage"), nil
	}

	remaining := *limit - used
	if used+amount > *limit {
		metrics.GateDecisions.WithLabelValues(string(feature), "denied").Inc()
		r := max(remaining, 0)
		return CheckResult{
			Allowed:   false,
			Remaining: &r,
			Limit:     limit,
			Reason:    fmt.Sprintf("monthly limit reached (%d/%d)", used, *limit),
			ErrorCode: CodeLimitExceeded,
		}, nil
	}

	metrics.GateDecisions.WithLabelValues(string(feature), "allowed").Inc()
	left := remaining - amount
	return CheckResult{Allowed: true, Remaining: &left, Limit: limit}, nil
}

// CheckFreeTierSTTAccess проверяет бесплатный лимит распознавания речи.
// Пользователи без активной подписки получают фиксированные секунды
// распознавания; безлимитные тарифы пропускаются без проверки.
func (s *Service) CheckFreeTierSTTAccess(ctx context.Context, userUID string, seconds int) (CheckResult, error) {
	if code, reason := validateGateInput(userUID, seconds); code != "" {
		return denied(code, reason), nil
	}

	profile, err := s.repo.ReadProfile(ctx, userUID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		s.log.Error("failed to read profile", sl.Err(err))
		return denied(CodeProfileError, "unable to verify subscription"), nil
	}

	if profile != nil && profile.HasActiveSubscription() {
		if limits, ok := PlanLimits[profile.SubscriptionPlan]; ok && limits.VoiceSeconds == nil {
			return CheckResult{Allowed: true}, nil
		}
	}

	used, err := s.repo.ReadUsage(ctx, userUID, models.FeatureVoiceSeconds, period.Current())
	if err != nil {
		s.log.Error("failed to read voice usage", sl.Err(err))
		return denied(CodeRPCError, "unable to verify usage"), nil
	}

	limit := s.freeTierSTTSeconds
	remaining := limit - used
	if used+seconds > limit {
		metrics.GateDecisions.WithLabelValues(string(models.FeatureVoiceSeconds), "denied").Inc()
		r := max(remaining, 0)
		return CheckResult{
			Allowed:   false,
			Remaining: &r,
			Limit:     &limit,
			Reason:    fmt.Sprintf("free tier limit reached (%d/%d seconds)", used, limit),
			ErrorCode: CodeLimitExceeded,
		}, nil
	}

	metrics.GateDecisions.WithLabelValues(string(models.FeatureVoiceSeconds), "allowed").Inc()
	left := remaining - seconds
	return CheckResult{Allowed: true, Remaining: &left, Limit: &limit}, nil
}

// AtomicCheckAndIncrement резервирует квоту одной атомарной операцией на
// стороне базы данных. Единственный путь, безопасный при параллельном
// расходовании лимита одним пользователем.
func (s *Service) AtomicCheckAndIncrement(ctx context.Context, userUID string, feature models.FeatureType, amount int) (IncrementResult, error) {
	if code, reason := validateGateInput(userUID, amount); code != "" {
		return IncrementResult{Success: false, ErrorCode: code, Reason: reason}, nil
	}
	if err := feature.Validate(); err != nil {
		return IncrementResult{Success: false, ErrorCode: CodeInvalidFeature, Reason: err.Error()}, nil
	}

	limit, check, ok := s.resolveLimit(ctx, userUID, feature)
	if !ok {
		return IncrementResult{Success: false, ErrorCode: check.ErrorCode, Reason: check.Reason}, nil
	}

	currentPeriod := period.Current()

	if limit == nil {
		// Безлимитный тариф: счётчик растёт только для аудита.
		if err := s.repo.IncrementUsage(ctx, userUID, feature, amount, currentPeriod); err != nil {
			s.log.Error("failed to increment unlimited usage", sl.Err(err))
			return IncrementResult{Success: false, ErrorCode: CodeRPCError, Reason: "usage increment failed"}, nil
		}
		metrics.GateDecisions.WithLabelValues(string(feature), "allowed").Inc()
		return IncrementResult{Success: true}, nil
	}

	res, err := s.repo.CheckAndIncrementUsage(ctx, userUID, feature, amount, *limit, currentPeriod)
	if err != nil {
		s.log.Error("atomic check-and-increment failed", sl.Err(err))
		return IncrementResult{Success: false, ErrorCode: CodeRPCError, Reason: "usage reservation failed"}, nil
	}

	result := IncrementResult{
		Success:       res.Allowed,
		PreviousUsage: res.PreviousUsage,
		NewUsage:      res.NewUsage,
		Remaining:     &res.Remaining,
		Limit:         limit,
		ErrorCode:     res.ErrorCode,
	}
	if !res.Allowed {
		metrics.GateDecisions.WithLabelValues(string(feature), "denied").Inc()
		result.Reason = fmt.Sprintf("monthly limit reached (%d/%d)", res.PreviousUsage, *limit)
		return result, nil
	}
	metrics.GateDecisions.WithLabelValues(string(feature), "allowed").Inc()
	return result, nil
}

// resolveLimit читает профиль и возвращает лимит тарифа для функции.
// При отказе возвращает ok=false и заполненный CheckResult.
func (s *Service) resolveLimit(ctx context.Context, userUID string, feature models.FeatureType) (*int, CheckResult, bool) {
	profile, err := s.repo.ReadProfile(ctx, userUID)
	if err != nil {
		s.log.Error("failed to read profile", sl.Err(err))
		return nil, denied(CodeProfileError, "unable to verify subscription"), false
	}
	if !profile.HasActiveSubscription() {
		return nil, denied(CodeNoSubscription, "no active subscription"), false
	}

	limits, ok := PlanLimits[profile.SubscriptionPlan]
	if !ok {
		s.log.Warn("unknown subscription plan, denying access",
			slog.String("plan", profile.SubscriptionPlan))
		return nil, denied(CodeUnknownPlan, "unknown subscription plan"), false
	}
	return limits.Limit(feature), CheckResult{}, true
}
