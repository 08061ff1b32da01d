// Package chat реализует приём сообщений беседы и разветвление побочных
// эффектов: сохранение сообщения, запуск языковой модели и рассылку
// событий подписчикам. Ответ вызывающей стороне не ждёт завершения веток.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/services/dispatch"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"
)

// MessageRepository определяет методы хранилища сообщений.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (*models.Message, error)
	CreateMessages(ctx context.Context, msgs []models.Message) ([]*models.Message, error)
	ReadConversation(ctx context.Context, id string) (*models.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
}

// Broadcaster рассылает события беседы подписчикам.
type Broadcaster interface {
	MessageInsert(ctx context.Context, chatID string, msg *models.Message) error
	AssistantThinking(ctx context.Context, chatID string, thinking bool) error
	ThinkingMode(ctx context.Context, chatID, transcript string) error
}

// Enqueuer ставит фоновую задачу в локальную очередь.
type Enqueuer interface {
	Enqueue(task dispatch.Task) bool
}

// LLMFallback исполняет задачу вызова LLM в текущем процессе, когда
// очередь сообщений недоступна.
type LLMFallback interface {
	Handle(body []byte) error
}

// Service реализует разветвление запроса chat-send.
type Service struct {
	repo      MessageRepository
	broadcast Broadcaster
	queue     dispatch.QueuePublisher
	runner    Enqueuer
	fallback  LLMFallback
	log       *slog.Logger
}

// New создает новый Service приёма сообщений.
func New(repo MessageRepository, broadcast Broadcaster, queue dispatch.QueuePublisher,
	runner Enqueuer, fallback LLMFallback, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		broadcast: broadcast,
		queue:     queue,
		runner:    runner,
		fallback:  fallback,
		log:       log,
	}
}

// SendInput — одиночное сообщение беседы.
type SendInput struct {
	ChatID      string
	Text        string
	Mode        string
	ChatType    string
	Role        string
	UserUID     string
	UserName    string
	ClientMsgID string
	Analyze     bool
	Meta        json.RawMessage
}

// BatchMessage — элемент пакетной вставки.
type BatchMessage struct {
	Role        string
	Text        string
	Mode        string
	ClientMsgID string
	Meta        json.RawMessage
}

// SendResult — итог приёма сообщения.
type SendResult struct {
	Message    string            `json:"message"`
	Saved      *models.Message   `json:"saved,omitempty"`
	SavedBatch []*models.Message `json:"saved_batch,omitempty"`
	LLMStarted bool              `json:"llm_started"`
}

func buildMessage(in SendInput) models.Message {
	clientMsgID := in.ClientMsgID
	if clientMsgID == "" {
		clientMsgID = uuid.NewString()
	}
	msg := models.Message{
		ID:          uuid.NewString(),
		ChatID:      in.ChatID,
		Role:        in.Role,
		Text:        in.Text,
		ClientMsgID: clientMsgID,
		Status:      models.MessageStatusComplete,
		Mode:        in.Mode,
		Meta:        in.Meta,
	}
	if in.UserUID != "" {
		uid := in.UserUID
		msg.UserUID = &uid
	}
	if in.UserName != "" {
		name := in.UserName
		msg.UserName = &name
	}
	return msg
}

// Send принимает одиночное сообщение. Сообщения пользователя сохраняются
// фоновой задачей, сообщения ассистента — синхронно. Запуск LLM и
// рассылка событий не дожидаются ответа.
func (s *Service) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	if in.Role != models.MessageRoleAssistant {
		in.Role = models.MessageRoleUser
	}
	msg := buildMessage(in)

	llmStarted := false
	if s.shouldTriggerLLM(ctx, in) {
		llmStarted = true
		_ = s.broadcast.AssistantThinking(ctx, in.ChatID, true)
		s.publishLLMTask(dispatch.LLMTask{
			ChatID:      in.ChatID,
			Text:        in.Text,
			Mode:        in.Mode,
			UserUID:     in.UserUID,
			UserName:    in.UserName,
			ClientMsgID: msg.ClientMsgID,
		})
	}

	if in.Role == models.MessageRoleUser {
		s.runner.Enqueue(dispatch.Task{
			Kind: "persist-message",
			Run: func(taskCtx context.Context) error {
				saved, err := s.repo.CreateMessage(taskCtx, msg)
				if err != nil {
					return err
				}
				_ = s.broadcast.MessageInsert(taskCtx, in.ChatID, saved)
				return s.repo.TouchConversation(taskCtx, in.ChatID)
			},
		})
		return &SendResult{Message: "User message saved", Saved: &msg, LLMStarted: llmStarted}, nil
	}

	saved, err := s.repo.CreateMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	_ = s.broadcast.MessageInsert(ctx, in.ChatID, saved)
	if err := s.repo.TouchConversation(ctx, in.ChatID); err != nil {
		s.log.Error("failed to touch conversation", sl.Err(err))
	}
	return &SendResult{Message: "Assistant message saved", Saved: saved, LLMStarted: llmStarted}, nil
}

// SendBatch сохраняет пакет сообщений одной транзакцией и рассылает
// событие на каждое сохранённое сообщение. LLM для пакета не запускается.
func (s *Service) SendBatch(ctx context.Context, base SendInput, msgs []BatchMessage) (*SendResult, error) {
	rows := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		in := base
		in.Role = m.Role
		in.Text = m.Text
		in.ClientMsgID = m.ClientMsgID
		in.Meta = m.Meta
		if m.Mode != "" {
			in.Mode = m.Mode
		}
		rows = append(rows, buildMessage(in))
	}

	saved, err := s.repo.CreateMessages(ctx, rows)
	if err != nil {
		return nil, err
	}
	for _, m := range saved {
		_ = s.broadcast.MessageInsert(ctx, base.ChatID, m)
	}
	if err := s.repo.TouchConversation(ctx, base.ChatID); err != nil {
		s.log.Error("failed to touch conversation", sl.Err(err))
	}
	return &SendResult{Message: "Batch messages saved", SavedBatch: saved}, nil
}

// RunVoiceFlow запускает обработку распознанной голосовой реплики фоновой
// задачей: сохраняет сообщение пользователя, передаёт транскрипт
// подписчикам и вызывает языковую модель, если беседа не в режиме
// together. Вызывающая сторона не ждёт завершения.
func (s *Service) RunVoiceFlow(in SendInput) {
	in.Role = models.MessageRoleUser
	msg := buildMessage(in)

	s.runner.Enqueue(dispatch.Task{
		Kind: "voice-flow",
		Run: func(ctx context.Context) error {
			saved, err := s.repo.CreateMessage(ctx, msg)
			if err != nil {
				s.log.Error("failed to persist voice transcript", sl.Err(err))
			} else {
				_ = s.broadcast.MessageInsert(ctx, in.ChatID, saved)
			}
			_ = s.broadcast.ThinkingMode(ctx, in.ChatID, in.Text)

			if s.conversationMode(ctx, in.ChatID) == "together" {
				s.log.Info("together mode, skipping llm for voice transcript",
					slog.String("chat_id", in.ChatID))
				return nil
			}

			_ = s.broadcast.AssistantThinking(ctx, in.ChatID, true)
			s.publishLLMTask(dispatch.LLMTask{
				ChatID:      in.ChatID,
				Text:        in.Text,
				Mode:        in.Mode,
				UserUID:     in.UserUID,
				UserName:    in.UserName,
				ClientMsgID: msg.ClientMsgID,
			})
			return nil
		},
	})
}

// shouldTriggerLLM решает, запускать ли языковую модель для сообщения.
// Запускаются только пользовательские сообщения не голосового типа;
// беседы в режиме together — лишь по явному флагу analyze.
func (s *Service) shouldTriggerLLM(ctx context.Context, in SendInput) bool {
	if in.Role != models.MessageRoleUser || in.ChatType == "voice" {
		return false
	}
	if s.conversationMode(ctx, in.ChatID) == "together" && !in.Analyze {
		return false
	}
	return true
}

// conversationMode возвращает режим беседы, по умолчанию chat.
func (s *Service) conversationMode(ctx context.Context, chatID string) string {
	conv, err := s.repo.ReadConversation(ctx, chatID)
	switch {
	case err == nil:
		if conv.Mode != "" {
			return conv.Mode
		}
	case errors.Is(err, repository.ErrConversationNotFound):
	default:
		s.log.Error("failed to read conversation mode", sl.Err(err))
	}
	return "chat"
}

// publishLLMTask публикует задачу в очередь сообщений, а при её
// недоступности исполняет вызов LLM локальной фоновой задачей.
func (s *Service) publishLLMTask(task dispatch.LLMTask) {
	if s.queue != nil {
		err := s.queue.PublishLLMTask(task)
		if err == nil {
			return
		}
		s.log.Error("failed to publish llm task, falling back to local execution", sl.Err(err))
	}
	if s.fallback == nil {
		s.log.Error("llm task dropped: no queue and no local fallback")
		return
	}

	body, err := json.Marshal(task)
	if err != nil {
		s.log.Error("failed to marshal llm task", sl.Err(err))
		return
	}
	s.runner.Enqueue(dispatch.Task{
		Kind: "llm",
		Run: func(context.Context) error {
			return s.fallback.Handle(body)
		},
	})
}
