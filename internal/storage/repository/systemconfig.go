package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ReadConfigValue возвращает значение ключа системной конфигурации (jsonb).
func (s *Storage) ReadConfigValue(ctx context.Context, key string) (json.RawMessage, error) {
	const op = "storage.ReadConfigValue"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT value FROM system_config WHERE key = $1`
	var value json.RawMessage
	if err := s.DB.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrConfigNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}
