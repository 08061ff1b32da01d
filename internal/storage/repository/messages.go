package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/chat-gateway/internal/models"
)

// CreateMessage вставляет сообщение и возвращает сохранённую строку.
func (s *Storage) CreateMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	const op = "storage.CreateMessage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO messages (id, chat_id, role, text, client_msg_id, status, mode, user_uid, user_name, meta)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, '{}'::jsonb))
			  RETURNING id, chat_id, role, text, client_msg_id, status, mode, user_uid, user_name, meta, created_at`
	row := s.DB.QueryRowContext(ctx, query,
		msg.ID, msg.ChatID, msg.Role, msg.Text, msg.ClientMsgID, msg.Status, msg.Mode,
		msg.UserUID, msg.UserName, msg.Meta)

	var result models.Message
	if err := row.Scan(&result.ID, &result.ChatID, &result.Role, &result.Text,
		&result.ClientMsgID, &result.Status, &result.Mode, &result.UserUID,
		&result.UserName, &result.Meta, &result.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// CreateMessages вставляет пакет сообщений в одной транзакции и возвращает
// сохранённые строки в порядке вставки.
func (s *Storage) CreateMessages(ctx context.Context, msgs []models.Message) ([]*models.Message, error) {
	const op = "storage.CreateMessages"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO messages (id, chat_id, role, text, client_msg_id, status, mode, user_uid, user_name, meta)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, '{}'::jsonb))
			  RETURNING id, chat_id, role, text, client_msg_id, status, mode, user_uid, user_name, meta, created_at`

	result := make([]*models.Message, 0, len(msgs))
	for _, msg := range msgs {
		row := tx.QueryRowContext(ctx, query,
			msg.ID, msg.ChatID, msg.Role, msg.Text, msg.ClientMsgID, msg.Status, msg.Mode,
			msg.UserUID, msg.UserName, msg.Meta)
		var saved models.Message
		if err := row.Scan(&saved.ID, &saved.ChatID, &saved.Role, &saved.Text,
			&saved.ClientMsgID, &saved.Status, &saved.Mode, &saved.UserUID,
			&saved.UserName, &saved.Meta, &saved.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &saved)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountMessages возвращает количество сообщений в беседе.
func (s *Storage) CountMessages(ctx context.Context, chatID string) (int, error) {
	const op = "storage.CountMessages"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
