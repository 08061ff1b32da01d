package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/magabrotheeeer/chat-gateway/internal/models"
)

// CreateConversation вставляет новую беседу.
func (s *Storage) CreateConversation(ctx context.Context, conv models.Conversation) (*models.Conversation, error) {
	const op = "storage.CreateConversation"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO conversations (id, user_uid, owner_user_uid, title, mode, is_public, meta)
			  VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'::jsonb))
			  RETURNING id, user_uid, owner_user_uid, title, mode, is_public, meta, created_at, updated_at`
	row := s.DB.QueryRowContext(ctx, query,
		conv.ID, conv.UserUID, conv.OwnerUserUID, conv.Title, conv.Mode, conv.IsPublic, conv.Meta)
	return scanConversation(row, op)
}

// ReadConversation возвращает беседу по ID.
func (s *Storage) ReadConversation(ctx context.Context, id string) (*models.Conversation, error) {
	const op = "storage.ReadConversation"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, owner_user_uid, title, mode, is_public, meta, created_at, updated_at
			  FROM conversations WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)
	return scanConversation(row, op)
}

// ReadConversationForUser возвращает беседу по ID, принадлежащую пользователю.
func (s *Storage) ReadConversationForUser(ctx context.Context, id, userUID string) (*models.Conversation, error) {
	const op = "storage.ReadConversationForUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, owner_user_uid, title, mode, is_public, meta, created_at, updated_at
			  FROM conversations WHERE id = $1 AND user_uid = $2`
	row := s.DB.QueryRowContext(ctx, query, id, userUID)
	return scanConversation(row, op)
}

// ListConversations возвращает собственные и общие беседы пользователя,
// дедуплицированные по ID и отсортированные по updated_at по убыванию.
func (s *Storage) ListConversations(ctx context.Context, userUID string) ([]*models.Conversation, error) {
	const op = "storage.ListConversations"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT DISTINCT ON (c.id)
				  c.id, c.user_uid, c.owner_user_uid, c.title, c.mode, c.is_public, c.meta, c.created_at, c.updated_at
			  FROM conversations c
			  LEFT JOIN conversation_participants p ON p.conversation_id = c.id
			  WHERE c.user_uid = $1 OR p.user_uid = $1
			  ORDER BY c.id, c.updated_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserUID, &c.OwnerUserUID, &c.Title, &c.Mode,
			&c.IsPublic, &c.Meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sortConversationsByUpdatedAt(result)
	return result, nil
}

// DeleteConversation удаляет беседу и её сообщения. Возвращает количество
// удалённых бесед (0 — беседа не найдена или пользователь не владелец).
func (s *Storage) DeleteConversation(ctx context.Context, id, ownerUID string) (int, error) {
	const op = "storage.DeleteConversation"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = $1`, id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	result, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = $1 AND owner_user_uid = $2`, id, ownerUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdateConversationVisibility помечает беседу публичной или приватной.
func (s *Storage) UpdateConversationVisibility(ctx context.Context, id, ownerUID string, isPublic bool) (int, error) {
	const op = "storage.UpdateConversationVisibility"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE conversations SET is_public = $1, updated_at = now()
			  WHERE id = $2 AND owner_user_uid = $3`
	result, err := s.DB.ExecContext(ctx, query, isPublic, id, ownerUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdateConversationTitle обновляет заголовок беседы пользователя.
func (s *Storage) UpdateConversationTitle(ctx context.Context, id, userUID, title string) (int, error) {
	const op = "storage.UpdateConversationTitle"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE conversations SET title = $1, updated_at = now()
			  WHERE id = $2 AND user_uid = $3`
	result, err := s.DB.ExecContext(ctx, query, title, id, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// TouchConversation обновляет updated_at беседы.
func (s *Storage) TouchConversation(ctx context.Context, id string) error {
	const op = "storage.TouchConversation"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE conversations SET updated_at = now() WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpsertParticipant добавляет участника беседы, не меняя роль существующего владельца.
func (s *Storage) UpsertParticipant(ctx context.Context, p models.Participant) error {
	const op = "storage.UpsertParticipant"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO conversation_participants (conversation_id, user_uid, role)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (conversation_id, user_uid) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, p.ConversationID, p.UserUID, p.Role); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListParticipants возвращает идентификаторы участников беседы.
func (s *Storage) ListParticipants(ctx context.Context, conversationID string) ([]string, error) {
	const op = "storage.ListParticipants"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid FROM conversation_participants WHERE conversation_id = $1`
	rows, err := s.DB.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanConversation(row *sql.Row, op string) (*models.Conversation, error) {
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.UserUID, &c.OwnerUserUID, &c.Title, &c.Mode,
		&c.IsPublic, &c.Meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrConversationNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

func sortConversationsByUpdatedAt(convs []*models.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}
