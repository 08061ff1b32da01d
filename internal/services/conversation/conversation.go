// Package conversation содержит бизнес-логику управления беседами:
// создание, список, удаление, публикация и присоединение участников.
package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"
)

// ErrNotPublic возвращается при попытке присоединиться к приватной беседе.
var ErrNotPublic = errors.New("conversation is not public")

// Repository определяет методы хранилища для управления беседами.
type Repository interface {
	CreateConversation(ctx context.Context, conv models.Conversation) (*models.Conversation, error)
	ReadConversation(ctx context.Context, id string) (*models.Conversation, error)
	ReadConversationForUser(ctx context.Context, id, userUID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userUID string) ([]*models.Conversation, error)
	DeleteConversation(ctx context.Context, id, ownerUID string) (int, error)
	UpdateConversationVisibility(ctx context.Context, id, ownerUID string, isPublic bool) (int, error)
	UpdateConversationTitle(ctx context.Context, id, userUID, title string) (int, error)
	TouchConversation(ctx context.Context, id string) error
	UpsertParticipant(ctx context.Context, p models.Participant) error
}

// Service реализует операции над беседами.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает новый Service бесед.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create создает беседу и записывает создателя владельцем.
func (s *Service) Create(ctx context.Context, userUID, title, mode string) (*models.Conversation, error) {
	conv := models.Conversation{
		ID:           uuid.NewString(),
		UserUID:      userUID,
		OwnerUserUID: userUID,
		Title:        title,
		Mode:         mode,
	}
	created, err := s.repo.CreateConversation(ctx, conv)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpsertParticipant(ctx, models.Participant{
		ConversationID: created.ID,
		UserUID:        userUID,
		Role:           models.ParticipantRoleOwner,
	}); err != nil {
		return nil, err
	}
	s.log.Info("created conversation", slog.String("id", created.ID))
	return created, nil
}

// GetOrCreate возвращает существующую беседу пользователя либо создает
// новую. Непустой chatID переиспользуется как идентификатор новой беседы,
// чтобы клиент мог сгенерировать его заранее.
func (s *Service) GetOrCreate(ctx context.Context, userUID, chatID, title, mode string) (*models.Conversation, error) {
	if chatID != "" {
		existing, err := s.repo.ReadConversationForUser(ctx, chatID, userUID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrConversationNotFound) {
			return nil, err
		}
	}

	id := chatID
	if id == "" || uuid.Validate(id) != nil {
		id = uuid.NewString()
	}
	conv := models.Conversation{
		ID:           id,
		UserUID:      userUID,
		OwnerUserUID: userUID,
		Title:        title,
		Mode:         mode,
	}
	created, err := s.repo.CreateConversation(ctx, conv)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpsertParticipant(ctx, models.Participant{
		ConversationID: created.ID,
		UserUID:        userUID,
		Role:           models.ParticipantRoleOwner,
	}); err != nil {
		return nil, err
	}
	return created, nil
}

// List возвращает беседы, доступные пользователю.
func (s *Service) List(ctx context.Context, userUID string) ([]*models.Conversation, error) {
	return s.repo.ListConversations(ctx, userUID)
}

// Delete удаляет беседу владельца вместе с сообщениями.
func (s *Service) Delete(ctx context.Context, userUID, id string) error {
	count, err := s.repo.DeleteConversation(ctx, id, userUID)
	if err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrConversationNotFound
	}
	s.log.Info("deleted conversation", slog.String("id", id))
	return nil
}

// Share помечает беседу публичной, открывая присоединение участникам.
func (s *Service) Share(ctx context.Context, ownerUID, id string) error {
	count, err := s.repo.UpdateConversationVisibility(ctx, id, ownerUID, true)
	if err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrConversationNotFound
	}
	return nil
}

// Unshare снова делает беседу приватной.
func (s *Service) Unshare(ctx context.Context, ownerUID, id string) error {
	count, err := s.repo.UpdateConversationVisibility(ctx, id, ownerUID, false)
	if err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrConversationNotFound
	}
	return nil
}

// Touch обновляет время последней активности беседы.
func (s *Service) Touch(ctx context.Context, id string) error {
	return s.repo.TouchConversation(ctx, id)
}

// Join добавляет пользователя участником публичной беседы.
func (s *Service) Join(ctx context.Context, userUID, id string) (*models.Conversation, error) {
	conv, err := s.repo.ReadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.IsPublic {
		return nil, ErrNotPublic
	}
	if err := s.repo.UpsertParticipant(ctx, models.Participant{
		ConversationID: id,
		UserUID:        userUID,
		Role:           models.ParticipantRoleMember,
	}); err != nil {
		return nil, err
	}
	return conv, nil
}

// Rename обновляет заголовок беседы пользователя.
func (s *Service) Rename(ctx context.Context, userUID, id, title string) error {
	count, err := s.repo.UpdateConversationTitle(ctx, id, userUID, title)
	if err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrConversationNotFound
	}
	return nil
}
