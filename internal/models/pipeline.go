package models

import "github.com/google/uuid"

// Status classifies the outcome of one inbound message attempt.
type Status string

const (
	StatusUnverified   Status = "unverified"
	StatusUnauthorized Status = "unauthorized"
	StatusSuccess      Status = "success"
	// StatusChatNotFound is reserved in the taxonomy but never assigned:
	// a missing chat is reported as StatusSuccess with an explanatory text.
	// Kept so the wire contract already has a slot if that ever changes.
	StatusChatNotFound Status = "chat_not_found"
)

// MessageToProcess is an authenticated chat message on its way to
// persistence. UserID is resolved from the validated session server-side;
// it is never taken from client input.
type MessageToProcess struct {
	UserID      uuid.UUID `json:"user_id"`
	MessageID   string    `json:"message_id"`
	SubType     string    `json:"sub_type,omitempty"`
	Body        string    `json:"body,omitempty"`
	StickerRef  string    `json:"sticker,omitempty"`
	ReactionRef string    `json:"reaction,omitempty"`
	ChatID      string    `json:"chat_id"`
}

// MessageToRoute is the routing instruction produced once per inbound
// message attempt, by the processor on success and by the receiver on the
// rejection paths. It is consumed exactly once and never mutated.
type MessageToRoute struct {
	Text         string    `json:"text"`
	ConnectionID string    `json:"connection_id,omitempty"`
	UserID       uuid.UUID `json:"user_id"`
	ChatID       string    `json:"chat_id,omitempty"`
	MessageID    string    `json:"message_id"`
	Status       Status    `json:"status"`
}

// DeliveryInstruction names the live connections that should receive one
// outcome. Consumed by the gateway sender.
type DeliveryInstruction struct {
	ConnectionIDs []string `json:"connection_ids"`
	MessageID     string   `json:"message_id"`
	ChatID        string   `json:"chat_id,omitempty"`
	Status        Status   `json:"status"`
	Text          string   `json:"text"`
	Timestamp     int64    `json:"ts"` // Unix ms
}
