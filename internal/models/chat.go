package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat represents a conversation and its membership.
type Chat struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	AdminID   uuid.UUID   `json:"admin_id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

// HasMember reports whether the given user is in the chat's member list.
func (c *Chat) HasMember(userID uuid.UUID) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// User represents a registered chat participant.
type User struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage is a persisted chat message.
type ChatMessage struct {
	ID          string    `json:"id"` // ULID
	ChatID      uuid.UUID `json:"chat_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	SubType     string    `json:"sub_type,omitempty"`
	Body        string    `json:"body,omitempty"`
	StickerRef  string    `json:"sticker,omitempty"`
	ReactionRef string    `json:"reaction,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
