package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/services/llm"
)

// ProviderResolver возвращает актуального провайдера языковой модели.
type ProviderResolver interface {
	Resolve(ctx context.Context) llm.Provider
}

// MessageRepository сохраняет сообщения беседы.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (*models.Message, error)
}

// Broadcaster рассылает события беседы подписчикам.
type Broadcaster interface {
	AssistantThinking(ctx context.Context, chatID string, thinking bool) error
	MessageInsert(ctx context.Context, chatID string, msg *models.Message) error
}

// Processor обрабатывает задачи вызова LLM на стороне воркера:
// вызывает модель, сохраняет ответ и рассылает события.
type Processor struct {
	log         *slog.Logger
	resolver    ProviderResolver
	repo        MessageRepository
	broadcaster Broadcaster
}

// NewProcessor создает новый Processor.
func NewProcessor(log *slog.Logger, resolver ProviderResolver, repo MessageRepository, broadcaster Broadcaster) *Processor {
	return &Processor{
		log:         log,
		resolver:    resolver,
		repo:        repo,
		broadcaster: broadcaster,
	}
}

// Handle обрабатывает одну задачу из очереди. Ошибка возвращается только
// для неразборчивого тела: сбой модели или хранилища логируется без
// повторной доставки, подписчики узнают о неудаче по снятому индикатору.
func (p *Processor) Handle(body []byte) error {
	const op = "dispatch.Processor.Handle"
	ctx := context.Background()

	var task LLMTask
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log := p.log.With(slog.String("chat_id", task.ChatID))
	_ = p.broadcaster.AssistantThinking(ctx, task.ChatID, true)
	defer func() { _ = p.broadcaster.AssistantThinking(ctx, task.ChatID, false) }()

	provider := p.resolver.Resolve(ctx)
	reply, err := provider.Invoke(ctx, llm.InvokeRequest{
		ChatID:   task.ChatID,
		Text:     task.Text,
		Mode:     task.Mode,
		UserUID:  task.UserUID,
		UserName: task.UserName,
	})
	if err != nil {
		log.Error("llm invocation failed",
			slog.String("provider", provider.Name()), sl.Err(err))
		metricsOutcome("llm", "failure")
		return nil
	}

	msg := models.Message{
		ID:     uuid.NewString(),
		ChatID: task.ChatID,
		Role:   models.MessageRoleAssistant,
		Text:   reply,
		Status: models.MessageStatusComplete,
		Mode:   task.Mode,
	}
	saved, err := p.repo.CreateMessage(ctx, msg)
	if err != nil {
		log.Error("failed to persist assistant message", sl.Err(err))
		metricsOutcome("llm", "failure")
		return nil
	}

	_ = p.broadcaster.MessageInsert(ctx, task.ChatID, saved)
	metricsOutcome("llm", "success")
	return nil
}
