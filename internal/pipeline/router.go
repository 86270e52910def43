package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/metrics"
	"github.com/chatmesh-io/chatmesh/internal/models"
	"github.com/chatmesh-io/chatmesh/internal/presence"
	"github.com/chatmesh-io/chatmesh/internal/store"
	"github.com/chatmesh-io/chatmesh/internal/transport"
)

// Router resolves a routing instruction into the set of live connections
// that should see it and publishes the resulting delivery instruction.
// Delivery is best-effort: members without a presence entry are skipped.
type Router struct {
	queue transport.Queue
	store store.DataStore
	cache presence.Cache
	log   zerolog.Logger
}

// NewRouter creates the router stage.
func NewRouter(queue transport.Queue, store store.DataStore, cache presence.Cache, log zerolog.Logger) *Router {
	return &Router{
		queue: queue,
		store: store,
		cache: cache,
		log:   log.With().Str("stage", "router").Logger(),
	}
}

// Handle resolves and publishes one routing instruction. Completion is
// logged whatever the outcome.
func (rt *Router) Handle(ctx context.Context, m models.MessageToRoute) {
	var delivered int
	defer func() {
		rt.log.Info().
			Str("message_id", m.MessageID).
			Str("status", string(m.Status)).
			Int("recipients", delivered).
			Msg("routing completed")
	}()

	recipients := rt.resolve(ctx, m)
	delivered = len(recipients)
	if delivered == 0 {
		return
	}

	di := models.DeliveryInstruction{
		ConnectionIDs: recipients,
		MessageID:     m.MessageID,
		ChatID:        m.ChatID,
		Status:        m.Status,
		Text:          m.Text,
		Timestamp:     time.Now().UnixMilli(),
	}
	if err := rt.queue.Write(ctx, di, transport.WriteOptions{Queue: transport.QueueSend}); err != nil {
		rt.log.Error().Err(err).Str("message_id", m.MessageID).Msg("delivery publish failed")
		delivered = 0
		return
	}
	metrics.MessagesRouted.Inc()
}

// resolve builds the recipient connection set. The origin connection
// always hears the outcome; other chat participants are added only for
// success-classified messages.
func (rt *Router) resolve(ctx context.Context, m models.MessageToRoute) []string {
	var recipients []string

	origin := m.ConnectionID
	if origin == "" && m.UserID != uuid.Nil {
		// Processor-emitted routes carry no connection id; the sender's
		// live connection comes from the presence cache instead.
		conn, ok, err := rt.cache.Get(ctx, m.UserID)
		if err != nil {
			rt.log.Warn().Err(err).Stringer("user_id", m.UserID).Msg("origin presence lookup failed")
		} else if ok {
			origin = conn
		}
	}
	if origin != "" {
		recipients = append(recipients, origin)
	}

	if m.Status != models.StatusSuccess || m.ChatID == "" {
		return recipients
	}

	chatID, err := uuid.Parse(m.ChatID)
	if err != nil {
		return recipients
	}
	memberIDs, err := rt.store.GetChatMemberIDs(ctx, chatID)
	if err != nil {
		rt.log.Error().Err(err).Str("chat_id", m.ChatID).Msg("member lookup failed")
		return recipients
	}

	others := memberIDs[:0]
	for _, id := range memberIDs {
		if id != m.UserID {
			others = append(others, id)
		}
	}

	conns, err := rt.cache.GetMany(ctx, others)
	if err != nil {
		rt.log.Warn().Err(err).Str("chat_id", m.ChatID).Msg("presence lookup failed")
		return recipients
	}
	if missed := len(others) - len(conns); missed > 0 {
		metrics.PresenceMisses.Add(float64(missed))
	}

	for _, conn := range conns {
		if conn != origin {
			recipients = append(recipients, conn)
		}
	}
	return recipients
}
