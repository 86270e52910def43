package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/models"
	"github.com/chatmesh-io/chatmesh/internal/presence"
	"github.com/chatmesh-io/chatmesh/internal/transport"
)

func newTestRouter(s *fakeStore) (*Router, *memQueue, *presence.MemoryCache) {
	q := newMemQueue()
	cache := presence.NewMemoryCache(time.Minute)
	return NewRouter(q, s, cache, zerolog.Nop()), q, cache
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestSuccessFansOutToOtherMembers(t *testing.T) {
	s := newFakeStore()
	sender, m2, m3 := uuid.New(), uuid.New(), uuid.New()
	chat := seedChat(s, sender, sender, m2, m3)

	rt, q, cache := newTestRouter(s)
	ctx := context.Background()
	cache.Upsert(ctx, sender, "conn-s")
	cache.Upsert(ctx, m2, "conn-2")
	cache.Upsert(ctx, m3, "conn-3")

	rt.Handle(ctx, models.MessageToRoute{
		Text:      "hello room",
		UserID:    sender,
		ChatID:    chat.ID.String(),
		MessageID: "m1",
		Status:    models.StatusSuccess,
	})

	di := popOne[models.DeliveryInstruction](t, q, transport.QueueSend)
	if len(di.ConnectionIDs) != 3 {
		t.Fatalf("expected origin echo plus 2 members, got %v", di.ConnectionIDs)
	}
	for _, want := range []string{"conn-s", "conn-2", "conn-3"} {
		if !contains(di.ConnectionIDs, want) {
			t.Fatalf("missing %s in %v", want, di.ConnectionIDs)
		}
	}
}

func TestSenderConnectionCountedOnceNotAsMember(t *testing.T) {
	s := newFakeStore()
	sender, m2 := uuid.New(), uuid.New()
	chat := seedChat(s, sender, sender, m2)

	rt, q, cache := newTestRouter(s)
	ctx := context.Background()
	cache.Upsert(ctx, sender, "conn-s")
	cache.Upsert(ctx, m2, "conn-2")

	rt.Handle(ctx, models.MessageToRoute{
		Text:      "hi",
		UserID:    sender,
		ChatID:    chat.ID.String(),
		MessageID: "m1",
		Status:    models.StatusSuccess,
	})

	di := popOne[models.DeliveryInstruction](t, q, transport.QueueSend)
	seen := 0
	for _, id := range di.ConnectionIDs {
		if id == "conn-s" {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("sender connection must appear exactly once, got %v", di.ConnectionIDs)
	}
}

func TestOfflineMembersSilentlySkipped(t *testing.T) {
	s := newFakeStore()
	sender, online, offline := uuid.New(), uuid.New(), uuid.New()
	chat := seedChat(s, sender, sender, online, offline)

	rt, q, cache := newTestRouter(s)
	ctx := context.Background()
	cache.Upsert(ctx, sender, "conn-s")
	cache.Upsert(ctx, online, "conn-o")

	rt.Handle(ctx, models.MessageToRoute{
		Text:      "hi",
		UserID:    sender,
		ChatID:    chat.ID.String(),
		MessageID: "m1",
		Status:    models.StatusSuccess,
	})

	di := popOne[models.DeliveryInstruction](t, q, transport.QueueSend)
	if len(di.ConnectionIDs) != 2 || contains(di.ConnectionIDs, "") {
		t.Fatalf("offline member must be skipped, got %v", di.ConnectionIDs)
	}
}

func TestFailureOutcomeGoesOnlyToOrigin(t *testing.T) {
	s := newFakeStore()
	sender, m2 := uuid.New(), uuid.New()
	chat := seedChat(s, sender, sender, m2)

	rt, q, cache := newTestRouter(s)
	ctx := context.Background()
	cache.Upsert(ctx, m2, "conn-2")

	rt.Handle(ctx, models.MessageToRoute{
		Text:         "Invalid access token",
		ConnectionID: "conn-origin",
		ChatID:       chat.ID.String(),
		MessageID:    "m1",
		Status:       models.StatusUnauthorized,
	})

	di := popOne[models.DeliveryInstruction](t, q, transport.QueueSend)
	if len(di.ConnectionIDs) != 1 || di.ConnectionIDs[0] != "conn-origin" {
		t.Fatalf("failure must reach only the origin connection, got %v", di.ConnectionIDs)
	}
}

func TestProcessorRouteResolvesOriginFromPresence(t *testing.T) {
	s := newFakeStore()
	sender := uuid.New()
	chat := seedChat(s, sender, sender)

	rt, q, cache := newTestRouter(s)
	ctx := context.Background()
	cache.Upsert(ctx, sender, "conn-s")

	// Processor-emitted routes carry no connection id.
	rt.Handle(ctx, models.MessageToRoute{
		Text:      "hello",
		UserID:    sender,
		ChatID:    chat.ID.String(),
		MessageID: "m1",
		Status:    models.StatusSuccess,
	})

	di := popOne[models.DeliveryInstruction](t, q, transport.QueueSend)
	if len(di.ConnectionIDs) != 1 || di.ConnectionIDs[0] != "conn-s" {
		t.Fatalf("expected sender echo via presence, got %v", di.ConnectionIDs)
	}
}

func TestNoRecipientsPublishesNothing(t *testing.T) {
	s := newFakeStore()
	sender := uuid.New()
	chat := seedChat(s, sender, sender)

	rt, q, _ := newTestRouter(s)

	rt.Handle(context.Background(), models.MessageToRoute{
		Text:      "hello",
		UserID:    sender,
		ChatID:    chat.ID.String(),
		MessageID: "m1",
		Status:    models.StatusSuccess,
	})

	if q.len(transport.QueueSend) != 0 {
		t.Fatal("no live connections means no delivery instruction")
	}
}
