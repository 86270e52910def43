package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/metrics"
	"github.com/chatmesh-io/chatmesh/internal/models"
	"github.com/chatmesh-io/chatmesh/internal/store"
	"github.com/chatmesh-io/chatmesh/internal/transport"
)

const (
	textEmptyBody    = "Message can not be empty"
	textChatNotFound = "Chat not found"
)

// Processor validates chat membership and authorship, persists the
// message, and emits the routing instruction for the success path.
type Processor struct {
	queue transport.Queue
	store store.DataStore
	log   zerolog.Logger
}

// NewProcessor creates the processor stage.
func NewProcessor(queue transport.Queue, store store.DataStore, log zerolog.Logger) *Processor {
	return &Processor{
		queue: queue,
		store: store,
		log:   log.With().Str("stage", "processor").Logger(),
	}
}

// Handle processes one authenticated chat message.
func (p *Processor) Handle(ctx context.Context, m models.MessageToProcess) {
	if m.Body == "" {
		p.route(ctx, m, models.StatusUnverified, textEmptyBody)
		return
	}

	chatID, err := uuid.Parse(m.ChatID)
	if err != nil {
		// An unparseable id routes the same way as an unknown chat.
		p.route(ctx, m, models.StatusSuccess, textChatNotFound)
		return
	}

	chat, err := p.store.GetChat(ctx, chatID)
	if err != nil {
		p.log.Error().Err(err).Str("message_id", m.MessageID).Msg("chat lookup failed")
		return
	}
	if chat == nil {
		// Long-standing wire behavior: a missing chat reports success
		// with an explanatory text instead of its own status.
		p.route(ctx, m, models.StatusSuccess, textChatNotFound)
		return
	}

	user, err := p.store.GetUser(ctx, m.UserID)
	if err != nil {
		p.log.Error().Err(err).Str("message_id", m.MessageID).Msg("user lookup failed")
		return
	}
	if user == nil {
		p.route(ctx, m, models.StatusUnauthorized, textUnauthorized)
		return
	}

	if err := p.store.UpdateLastSeen(ctx, user.ID, time.Now().UTC()); err != nil {
		p.log.Warn().Err(err).Stringer("user_id", user.ID).Msg("last-seen update failed")
	}

	if !chat.HasMember(user.ID) && chat.AdminID != user.ID {
		p.route(ctx, m, models.StatusUnauthorized, textUnauthorized)
		return
	}

	msg := &models.ChatMessage{
		ID:          m.MessageID,
		ChatID:      chat.ID,
		SenderID:    user.ID,
		SubType:     m.SubType,
		Body:        m.Body,
		StickerRef:  m.StickerRef,
		ReactionRef: m.ReactionRef,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.store.AppendMessage(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("message_id", m.MessageID).Msg("message persist failed")
		return
	}

	p.route(ctx, m, models.StatusSuccess, m.Body)
}

func (p *Processor) route(ctx context.Context, m models.MessageToProcess, status models.Status, text string) {
	metrics.MessagesProcessed.WithLabelValues(string(status)).Inc()

	route := models.MessageToRoute{
		Text:      text,
		UserID:    m.UserID,
		ChatID:    m.ChatID,
		MessageID: m.MessageID,
		Status:    status,
	}
	if err := p.queue.Write(ctx, route, transport.WriteOptions{Queue: transport.QueueRoute}); err != nil {
		p.log.Error().Err(err).Str("message_id", m.MessageID).Msg("route publish failed")
	}
}
