package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/chat-gateway/internal/models"
)

// CheckAndIncrementResult — результат атомарной операции check-and-increment,
// возвращаемый хранимой функцией базы данных одной неделимой транзакцией.
type CheckAndIncrementResult struct {
	Allowed       bool
	PreviousUsage int
	NewUsage      int
	Remaining     int
	ErrorCode     string
}

// ReadUsage возвращает накопленное использование функции за период.
// Отсутствие строки означает нулевое использование.
func (s *Storage) ReadUsage(ctx context.Context, userUID string, feature models.FeatureType, period string) (int, error) {
	const op = "storage.ReadUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT usage_amount FROM feature_usage
			  WHERE user_uid = $1 AND feature_type = $2 AND period = $3`
	var amount int
	err := s.DB.QueryRowContext(ctx, query, userUID, string(feature), period).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return amount, nil
}

// ListUsage возвращает счётчики всех функций пользователя за период.
func (s *Storage) ListUsage(ctx context.Context, userUID string, period string) ([]*models.FeatureUsage, error) {
	const op = "storage.ListUsage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, feature_type, period, usage_amount FROM feature_usage
			  WHERE user_uid = $1 AND period = $2`
	rows, err := s.DB.QueryContext(ctx, query, userUID, period)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.FeatureUsage
	for rows.Next() {
		var u models.FeatureUsage
		if err := rows.Scan(&u.UserUID, &u.FeatureType, &u.Period, &u.UsageAmount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// IncrementUsage увеличивает счётчик функции на amount через хранимую
// функцию базы. Строка периода создаётся неявно при первом инкременте.
func (s *Storage) IncrementUsage(ctx context.Context, userUID string, feature models.FeatureType, amount int, period string) error {
	const op = "storage.IncrementUsage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	fn := incrementFunction(feature)
	query := fmt.Sprintf(`SELECT %s($1, $2, $3)`, fn)
	if _, err := s.DB.ExecContext(ctx, query, userUID, amount, period); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckAndIncrementUsage выполняет проверку лимита и инкремент одной
// атомарной операцией на стороне базы данных. Лимит передаётся из
// таблицы тарифов приложения; сама база хранит только счётчики.
func (s *Storage) CheckAndIncrementUsage(ctx context.Context, userUID string, feature models.FeatureType, amount, limit int, period string) (*CheckAndIncrementResult, error) {
	const op = "storage.CheckAndIncrementUsage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	fn := checkAndIncrementFunction(feature)
	query := fmt.Sprintf(`SELECT allowed, previous_usage, new_usage, remaining, error_code FROM %s($1, $2, $3, $4)`, fn)
	row := s.DB.QueryRowContext(ctx, query, userUID, amount, limit, period)

	var result CheckAndIncrementResult
	var errorCode sql.NullString
	if err := row.Scan(&result.Allowed, &result.PreviousUsage, &result.NewUsage,
		&result.Remaining, &errorCode); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.ErrorCode = errorCode.String
	return &result, nil
}

func incrementFunction(feature models.FeatureType) string {
	if feature == models.FeatureInsightsCount {
		return "increment_insights_count"
	}
	return "increment_voice_seconds"
}

func checkAndIncrementFunction(feature models.FeatureType) string {
	if feature == models.FeatureInsightsCount {
		return "check_and_increment_insights_count"
	}
	return "check_and_increment_voice_seconds"
}
