package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/chat-gateway/internal/models"
)

// ReadProfile возвращает профиль пользователя с полями подписки.
func (s *Storage) ReadProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	const op = "storage.ReadProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, subscription_plan, subscription_active, subscription_status, created_at
			  FROM profiles WHERE user_uid = $1`
	row := s.DB.QueryRowContext(ctx, query, userUID)

	// plan и status допускают NULL: профиль без подписки хранит их пустыми.
	var result models.Profile
	var plan, status sql.NullString
	if err := row.Scan(&result.UserUID, &plan, &result.SubscriptionActive,
		&status, &result.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.SubscriptionPlan = plan.String
	result.SubscriptionStatus = status.String
	return &result, nil
}
