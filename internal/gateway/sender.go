package gateway

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/metrics"
	"github.com/chatmesh-io/chatmesh/internal/models"
)

// OutboundFrame is what a client receives for each routed outcome.
type OutboundFrame struct {
	MessageID string        `json:"id"`
	ChatID    string        `json:"chat_id,omitempty"`
	Status    models.Status `json:"status"`
	Text      string        `json:"text"`
	Timestamp int64         `json:"ts"`
}

// Sender is the outbound edge: it consumes delivery instructions and
// pushes the outcome frame to every named live connection.
type Sender struct {
	store *ConnectionStore
	log   zerolog.Logger
}

// NewSender creates a delivery sink over the connection store.
func NewSender(store *ConnectionStore, log zerolog.Logger) *Sender {
	return &Sender{
		store: store,
		log:   log.With().Str("component", "sender").Logger(),
	}
}

// Deliver pushes the instruction to each resolved connection. Connections
// that disappeared since routing are skipped; write failures evict the
// broken socket and the rest of the fan-out continues.
func (s *Sender) Deliver(_ context.Context, di models.DeliveryInstruction) {
	frame := OutboundFrame{
		MessageID: di.MessageID,
		ChatID:    di.ChatID,
		Status:    di.Status,
		Text:      di.Text,
		Timestamp: di.Timestamp,
	}

	for _, id := range di.ConnectionIDs {
		conn, ok := s.store.Get(id)
		if !ok {
			metrics.Deliveries.WithLabelValues("stale").Inc()
			continue
		}
		if err := conn.WriteJSON(frame); err != nil {
			metrics.Deliveries.WithLabelValues("failed").Inc()
			s.log.Warn().Err(err).
				Str("connection_id", id).
				Str("message_id", di.MessageID).
				Msg("delivery write failed, evicting connection")
			s.store.Remove(id, "write failure", websocket.CloseInternalServerErr)
			continue
		}
		metrics.Deliveries.WithLabelValues("sent").Inc()
	}
}
