package models

import (
	"fmt"
	"strings"
)

// Kind discriminates the two frame types a connection may send.
type Kind string

const (
	KindMessage           Kind = "message"
	KindConnectionRequest Kind = "connection_request"
)

// RawMessage is the unit crossing the wire boundary: one WebSocket frame,
// decoded at the gateway and published to the raw intake queue.
//
// ConnectionId and MessageId are server-owned: the gateway stamps the
// connection id on every frame and generates a message id when the client
// left it empty. Both are therefore excluded from the integrity signature.
type RawMessage struct {
	MessageID          string `json:"id,omitempty"`
	Kind               Kind   `json:"kind"`
	SubType            string `json:"sub_type,omitempty"`
	ConnectionID       string `json:"connection_id,omitempty"`
	AccessToken        string `json:"access_token"`
	Body               string `json:"body,omitempty"`
	StickerRef         string `json:"sticker,omitempty"`
	ReactionRef        string `json:"reaction,omitempty"`
	ChatID             string `json:"chat_id,omitempty"`
	IntegritySignature string `json:"sig,omitempty"`
}

// SigningPayload returns the canonical byte string the integrity signature
// covers. Field order is part of the wire contract; changing it invalidates
// every signature already in flight.
func (m *RawMessage) SigningPayload() []byte {
	return []byte(strings.Join([]string{
		string(m.Kind),
		m.SubType,
		m.AccessToken,
		m.Body,
		m.StickerRef,
		m.ReactionRef,
		m.ChatID,
	}, "|"))
}

// IsConnectionRequest reports whether this frame registers a connection
// rather than carrying chat content.
func (m *RawMessage) IsConnectionRequest() bool {
	return m.Kind == KindConnectionRequest
}

// Validate checks the structural invariants of a decoded frame.
func (m *RawMessage) Validate() error {
	switch m.Kind {
	case KindConnectionRequest:
		if m.ChatID != "" || m.Body != "" || m.StickerRef != "" || m.ReactionRef != "" {
			return fmt.Errorf("connection request must not carry chat content")
		}
	case KindMessage:
		// ChatID is required once classified; the receiver rejects later
		// stages without it, the gateway only checks the kind is known.
	default:
		return fmt.Errorf("unknown frame kind %q", m.Kind)
	}
	return nil
}
