package models

import (
	"encoding/json"
	"time"
)

// Роли сообщений в беседе.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Статус сообщения. Сообщения сохраняются уже завершёнными,
// стриминга на этом уровне нет.
const MessageStatusComplete = "complete"

// Message представляет сообщение беседы.
type Message struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chat_id"`
	Role        string          `json:"role"`
	Text        string          `json:"text"`
	ClientMsgID string          `json:"client_msg_id"`
	Status      string          `json:"status"`
	Mode        string          `json:"mode"`
	UserUID     *string         `json:"user_id,omitempty"`
	UserName    *string         `json:"user_name,omitempty"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
