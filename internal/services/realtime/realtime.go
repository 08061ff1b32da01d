// Package realtime публикует события бесед в каналы pub/sub,
// на которые подписаны клиенты.
package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
)

// Имена событий канала беседы.
const (
	EventTTSReady          = "tts-ready"
	EventThinkingMode      = "thinking-mode"
	EventMessageInsert     = "message-insert"
	EventAssistantThinking = "assistant-thinking"
)

// Publisher публикует сериализованное событие в именованный канал.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Event — событие беседы для подписчиков.
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Broadcaster рассылает события бесед. Доставка best-effort: сбой
// публикации логируется и не влияет на основную операцию.
type Broadcaster struct {
	pub Publisher
	log *slog.Logger
}

// New создает новый Broadcaster.
func New(pub Publisher, log *slog.Logger) *Broadcaster {
	return &Broadcaster{pub: pub, log: log}
}

// Channel возвращает имя канала беседы.
func Channel(chatID string) string {
	return fmt.Sprintf("conversation:%s", chatID)
}

func (b *Broadcaster) broadcast(ctx context.Context, chatID, event string, payload any) error {
	err := b.pub.Publish(ctx, Channel(chatID), Event{Event: event, Payload: payload})
	if err != nil {
		b.log.Error("failed to broadcast event",
			slog.String("event", event), slog.String("chat_id", chatID), sl.Err(err))
	}
	return err
}

// TTSReady уведомляет подписчиков о готовом синтезированном аудио.
func (b *Broadcaster) TTSReady(ctx context.Context, chatID, audioBase64, mimeType string) error {
	return b.broadcast(ctx, chatID, EventTTSReady, map[string]string{
		"audio":     audioBase64,
		"mime_type": mimeType,
	})
}

// ThinkingMode передаёт распознанный текст в режиме размышления.
func (b *Broadcaster) ThinkingMode(ctx context.Context, chatID, transcript string) error {
	return b.broadcast(ctx, chatID, EventThinkingMode, map[string]string{
		"transcript": transcript,
	})
}

// MessageInsert уведомляет о новом сохранённом сообщении.
func (b *Broadcaster) MessageInsert(ctx context.Context, chatID string, msg *models.Message) error {
	return b.broadcast(ctx, chatID, EventMessageInsert, msg)
}

// AssistantThinking переключает индикатор набора ответа ассистентом.
func (b *Broadcaster) AssistantThinking(ctx context.Context, chatID string, thinking bool) error {
	return b.broadcast(ctx, chatID, EventAssistantThinking, map[string]bool{
		"thinking": thinking,
	})
}
