package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/crypto"
	"github.com/chatmesh-io/chatmesh/internal/metrics"
	"github.com/chatmesh-io/chatmesh/internal/models"
	"github.com/chatmesh-io/chatmesh/internal/presence"
	"github.com/chatmesh-io/chatmesh/internal/session"
	"github.com/chatmesh-io/chatmesh/internal/transport"
)

const (
	textUnverified   = "Message can not be verified"
	textUnauthorized = "Invalid access token"
)

// Receiver authenticates raw frames off the intake queue, upserting
// presence for connection registrations and forwarding chat messages to
// the processor queue.
type Receiver struct {
	queue    transport.Queue
	sessions session.Validator
	cache    presence.Cache
	signer   *crypto.Signer
	log      zerolog.Logger
}

// NewReceiver creates the receiver stage.
func NewReceiver(queue transport.Queue, sessions session.Validator, cache presence.Cache, signer *crypto.Signer, log zerolog.Logger) *Receiver {
	return &Receiver{
		queue:    queue,
		sessions: sessions,
		cache:    cache,
		signer:   signer,
		log:      log.With().Str("stage", "receiver").Logger(),
	}
}

// Handle processes one raw message. Every failure is resolved here:
// rejections become routing instructions, internal errors are logged and
// swallowed so the read loop never sees them.
func (r *Receiver) Handle(ctx context.Context, raw models.RawMessage) {
	// A present signature must verify. An absent one passes: unsigned
	// legacy clients are still accepted, only tampering is rejected.
	if raw.IntegritySignature != "" {
		if err := r.signer.Verify(raw.SigningPayload(), raw.IntegritySignature); err != nil {
			metrics.MessagesReceived.WithLabelValues("unverified").Inc()
			r.reject(ctx, raw, models.StatusUnverified, textUnverified)
			return
		}
	}

	if !r.sessions.Validate(ctx, raw.AccessToken) {
		metrics.MessagesReceived.WithLabelValues("unauthorized").Inc()
		r.reject(ctx, raw, models.StatusUnauthorized, textUnauthorized)
		return
	}

	userID, err := r.sessions.UserIDFor(ctx, raw.AccessToken)
	if err != nil {
		metrics.MessagesReceived.WithLabelValues("unauthorized").Inc()
		r.reject(ctx, raw, models.StatusUnauthorized, textUnauthorized)
		return
	}

	if raw.IsConnectionRequest() {
		if err := r.cache.Upsert(ctx, userID, raw.ConnectionID); err != nil {
			r.log.Error().Err(err).
				Str("connection_id", raw.ConnectionID).
				Msg("presence upsert failed")
			return
		}
		metrics.MessagesReceived.WithLabelValues("registered").Inc()
		r.log.Debug().
			Str("connection_id", raw.ConnectionID).
			Stringer("user_id", userID).
			Msg("connection registered")
		return
	}

	msg := models.MessageToProcess{
		UserID:      userID,
		MessageID:   raw.MessageID,
		SubType:     raw.SubType,
		Body:        raw.Body,
		StickerRef:  raw.StickerRef,
		ReactionRef: raw.ReactionRef,
		ChatID:      raw.ChatID,
	}
	if err := r.queue.Write(ctx, msg, transport.WriteOptions{Queue: transport.QueueProcess}); err != nil {
		r.log.Error().Err(err).Str("message_id", raw.MessageID).Msg("forward to processor failed")
		return
	}
	metrics.MessagesReceived.WithLabelValues("forwarded").Inc()
}

// reject reports the outcome back toward the origin connection.
func (r *Receiver) reject(ctx context.Context, raw models.RawMessage, status models.Status, text string) {
	route := models.MessageToRoute{
		Text:         text,
		ConnectionID: raw.ConnectionID,
		ChatID:       raw.ChatID,
		MessageID:    raw.MessageID,
		Status:       status,
	}
	if err := r.queue.Write(ctx, route, transport.WriteOptions{Queue: transport.QueueRoute}); err != nil {
		r.log.Error().Err(err).Str("message_id", raw.MessageID).Msg("rejection publish failed")
	}
}
