package models

import (
	"encoding/json"
	"time"
)

// Роли участников беседы.
const (
	ParticipantRoleOwner  = "owner"
	ParticipantRoleMember = "member"
)

// Conversation представляет беседу пользователя.
type Conversation struct {
	ID           string          `json:"id"`
	UserUID      string          `json:"user_id"`
	OwnerUserUID string          `json:"owner_user_id"`
	Title        string          `json:"title"`
	Mode         string          `json:"mode"`
	IsPublic     bool            `json:"is_public"`
	Meta         json.RawMessage `json:"meta,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Participant связывает пользователя с общей беседой.
type Participant struct {
	ConversationID string `json:"conversation_id"`
	UserUID        string `json:"user_id"`
	Role           string `json:"role"`
}
